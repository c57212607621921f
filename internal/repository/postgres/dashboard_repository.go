package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"possumtracker/internal/dto"
)

// DashboardRepository implements repository.DashboardRepository for PostgreSQL.
type DashboardRepository struct {
	db *DB
}

// NewDashboardRepository creates a new PostgreSQL dashboard repository.
func NewDashboardRepository(db *DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// scalar runs a single-value query and returns 0 for NULL.
func (r *DashboardRepository) scalar(ctx context.Context, query string) (float64, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var v *float64
	if err := conn.QueryRow(ctx, query).Scan(&v); err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

func (r *DashboardRepository) TotalVisits(ctx context.Context) (int, error) {
	total, err := r.scalar(ctx, `SELECT COUNT(*)::float8 FROM visits`)
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return int(total), nil
}

func (r *DashboardRepository) AverageVisitsPerNight(ctx context.Context) (float64, error) {
	avg, err := r.scalar(ctx, `
		SELECT ROUND(AVG(visits), 1)::float8 FROM (
			SELECT night_date, COUNT(*) AS visits FROM visits GROUP BY night_date
		) nightly
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to average visits per night: %w", err)
	}
	return avg, nil
}

func (r *DashboardRepository) AverageDuration(ctx context.Context) (float64, error) {
	avg, err := r.scalar(ctx, `SELECT ROUND(AVG(duration_seconds)::numeric, 1)::float8 FROM visits`)
	if err != nil {
		return 0, fmt.Errorf("failed to average duration: %w", err)
	}
	return avg, nil
}

func (r *DashboardRepository) MaxDuration(ctx context.Context) (float64, error) {
	max, err := r.scalar(ctx, `SELECT MAX(duration_seconds) FROM visits`)
	if err != nil {
		return 0, fmt.Errorf("failed to get max duration: %w", err)
	}
	return max, nil
}

func (r *DashboardRepository) MostPopularHour(ctx context.Context) (*dto.HourCount, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	var hc dto.HourCount
	err = conn.QueryRow(ctx, `
		SELECT start_hour, COUNT(*) AS visits FROM visits
		GROUP BY start_hour ORDER BY visits DESC, start_hour LIMIT 1
	`).Scan(&hc.Hour, &hc.Visits)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get most popular hour: %w", err)
	}
	return &hc, nil
}

func (r *DashboardRepository) MaxVisitsPerNight(ctx context.Context) (*dto.NightCount, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	var nc dto.NightCount
	err = conn.QueryRow(ctx, `
		SELECT night_date, COUNT(*) AS visits FROM visits
		GROUP BY night_date ORDER BY visits DESC, night_date DESC LIMIT 1
	`).Scan(&nc.NightDate, &nc.Visits)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get max visits per night: %w", err)
	}
	return &nc, nil
}

func (r *DashboardRepository) VisitsPerHour(ctx context.Context) ([]dto.HourCount, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT start_hour, COUNT(*) FROM visits GROUP BY start_hour ORDER BY start_hour
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count visits per hour: %w", err)
	}
	defer rows.Close()

	var hours []dto.HourCount
	for rows.Next() {
		var hc dto.HourCount
		if err := rows.Scan(&hc.Hour, &hc.Visits); err != nil {
			return nil, fmt.Errorf("failed to scan hour: %w", err)
		}
		hours = append(hours, hc)
	}
	return hours, rows.Err()
}

func (r *DashboardRepository) DurationHistogram(ctx context.Context) ([]dto.DurationBucket, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT CASE
				WHEN duration_seconds < 10 THEN '0-10 sec'
				WHEN duration_seconds < 30 THEN '10-30 sec'
				WHEN duration_seconds < 60 THEN '30-60 sec'
				ELSE '>60 sec'
			END AS bucket, COUNT(*)
		FROM visits WHERE duration_seconds IS NOT NULL
		GROUP BY bucket
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to build duration histogram: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(dto.DurationRanges))
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		counts[label] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	buckets := make([]dto.DurationBucket, 0, len(dto.DurationRanges))
	for _, label := range dto.DurationRanges {
		buckets = append(buckets, dto.DurationBucket{Label: label, Visits: counts[label]})
	}
	return buckets, nil
}

func (r *DashboardRepository) ActivitySummary(ctx context.Context) (*dto.ActivitySummary, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	var (
		summary                      dto.ActivitySummary
		ratio, distance, speed, peak *float64
	)
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*),
			ROUND(AVG(activity_ratio)::numeric, 3)::float8,
			ROUND(AVG(total_distance_cm)::numeric, 2)::float8,
			ROUND(AVG(avg_speed_cm_per_sec)::numeric, 2)::float8,
			MAX(max_speed_cm_per_sec)
		FROM visit_statistics
	`).Scan(&summary.Visits, &ratio, &distance, &speed, &peak)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize activity: %w", err)
	}
	summary.AvgActivityRatio = deref(ratio)
	summary.AvgDistanceCM = deref(distance)
	summary.AvgSpeedCMPerSec = deref(speed)
	summary.MaxSpeedCMPerSec = deref(peak)
	return &summary, nil
}

func (r *DashboardRepository) VisitsPerNight(ctx context.Context, from, to time.Time) ([]dto.NightCount, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT night_date, COUNT(*),
			COALESCE(ROUND(AVG(duration_seconds)::numeric, 1)::float8, 0),
			COUNT(video_url)
		FROM visits
		WHERE night_date BETWEEN $1 AND $2
		GROUP BY night_date
		ORDER BY night_date
	`, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to count visits per night: %w", err)
	}
	defer rows.Close()

	var nights []dto.NightCount
	for rows.Next() {
		var nc dto.NightCount
		if err := rows.Scan(&nc.NightDate, &nc.Visits, &nc.AverageDuration, &nc.Videos); err != nil {
			return nil, fmt.Errorf("failed to scan night: %w", err)
		}
		nights = append(nights, nc)
	}
	return nights, rows.Err()
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
