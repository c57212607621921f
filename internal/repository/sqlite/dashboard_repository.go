package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"possumtracker/internal/dto"
)

const durationBucketCase = `
	CASE
		WHEN duration_seconds < 10 THEN '0-10 sec'
		WHEN duration_seconds < 30 THEN '10-30 sec'
		WHEN duration_seconds < 60 THEN '30-60 sec'
		ELSE '>60 sec'
	END`

// DashboardRepository implements repository.DashboardRepository for SQLite.
type DashboardRepository struct {
	db *DB
}

// NewDashboardRepository creates a new SQLite dashboard repository.
func NewDashboardRepository(db *DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// query runs fn with a read lock and a borrowed connection.
func (r *DashboardRepository) query(ctx context.Context, fn func(conn *sql.Conn) error) error {
	r.db.RLock()
	defer r.db.RUnlock()

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(conn)
}

func (r *DashboardRepository) TotalVisits(ctx context.Context) (int, error) {
	var total int
	err := r.query(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&total)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return total, nil
}

func (r *DashboardRepository) AverageVisitsPerNight(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := r.query(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `
			SELECT ROUND(AVG(visits), 1) FROM (
				SELECT night_date, COUNT(*) AS visits FROM visits GROUP BY night_date
			)
		`).Scan(&avg)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to average visits per night: %w", err)
	}
	return avg.Float64, nil
}

func (r *DashboardRepository) AverageDuration(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := r.query(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `SELECT ROUND(AVG(duration_seconds), 1) FROM visits`).Scan(&avg)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to average duration: %w", err)
	}
	return avg.Float64, nil
}

func (r *DashboardRepository) MaxDuration(ctx context.Context) (float64, error) {
	var max sql.NullFloat64
	err := r.query(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `SELECT MAX(duration_seconds) FROM visits`).Scan(&max)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get max duration: %w", err)
	}
	return max.Float64, nil
}

// MostPopularHour returns nil when there are no visits.
func (r *DashboardRepository) MostPopularHour(ctx context.Context) (*dto.HourCount, error) {
	var hc dto.HourCount
	err := r.query(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `
			SELECT start_hour, COUNT(*) AS visits FROM visits
			GROUP BY start_hour ORDER BY visits DESC, start_hour LIMIT 1
		`).Scan(&hc.Hour, &hc.Visits)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get most popular hour: %w", err)
	}
	return &hc, nil
}

// MaxVisitsPerNight returns nil when there are no visits.
func (r *DashboardRepository) MaxVisitsPerNight(ctx context.Context) (*dto.NightCount, error) {
	var nc dto.NightCount
	err := r.query(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `
			SELECT night_date, COUNT(*) AS visits FROM visits
			GROUP BY night_date ORDER BY visits DESC, night_date DESC LIMIT 1
		`).Scan(&nc.NightDate, &nc.Visits)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get max visits per night: %w", err)
	}
	return &nc, nil
}

func (r *DashboardRepository) VisitsPerHour(ctx context.Context) ([]dto.HourCount, error) {
	var hours []dto.HourCount
	err := r.query(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT start_hour, COUNT(*) FROM visits GROUP BY start_hour ORDER BY start_hour
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var hc dto.HourCount
			if err := rows.Scan(&hc.Hour, &hc.Visits); err != nil {
				return err
			}
			hours = append(hours, hc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count visits per hour: %w", err)
	}
	return hours, nil
}

// DurationHistogram returns every bucket, empty ones included, in display order.
func (r *DashboardRepository) DurationHistogram(ctx context.Context) ([]dto.DurationBucket, error) {
	counts := make(map[string]int, len(dto.DurationRanges))
	err := r.query(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT `+durationBucketCase+` AS bucket, COUNT(*)
			FROM visits WHERE duration_seconds IS NOT NULL
			GROUP BY bucket
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				label string
				n     int
			)
			if err := rows.Scan(&label, &n); err != nil {
				return err
			}
			counts[label] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build duration histogram: %w", err)
	}

	buckets := make([]dto.DurationBucket, 0, len(dto.DurationRanges))
	for _, label := range dto.DurationRanges {
		buckets = append(buckets, dto.DurationBucket{Label: label, Visits: counts[label]})
	}
	return buckets, nil
}

func (r *DashboardRepository) ActivitySummary(ctx context.Context) (*dto.ActivitySummary, error) {
	var (
		summary                      dto.ActivitySummary
		ratio, distance, speed, peak sql.NullFloat64
	)
	err := r.query(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `
			SELECT COUNT(*), ROUND(AVG(activity_ratio), 3), ROUND(AVG(total_distance_cm), 2),
				ROUND(AVG(avg_speed_cm_per_sec), 2), MAX(max_speed_cm_per_sec)
			FROM visit_statistics
		`).Scan(&summary.Visits, &ratio, &distance, &speed, &peak)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize activity: %w", err)
	}
	summary.AvgActivityRatio = ratio.Float64
	summary.AvgDistanceCM = distance.Float64
	summary.AvgSpeedCMPerSec = speed.Float64
	summary.MaxSpeedCMPerSec = peak.Float64
	return &summary, nil
}

// VisitsPerNight counts visits for each night between from and to inclusive.
func (r *DashboardRepository) VisitsPerNight(ctx context.Context, from, to time.Time) ([]dto.NightCount, error) {
	var nights []dto.NightCount
	err := r.query(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT night_date, COUNT(*), COALESCE(ROUND(AVG(duration_seconds), 1), 0),
				SUM(CASE WHEN video_url IS NOT NULL THEN 1 ELSE 0 END)
			FROM visits
			WHERE night_date BETWEEN ? AND ?
			GROUP BY night_date
			ORDER BY night_date
		`, from.Format("2006-01-02"), to.Format("2006-01-02"))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var nc dto.NightCount
			if err := rows.Scan(&nc.NightDate, &nc.Visits, &nc.AverageDuration, &nc.Videos); err != nil {
				return err
			}
			nights = append(nights, nc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count visits per night: %w", err)
	}
	return nights, nil
}
