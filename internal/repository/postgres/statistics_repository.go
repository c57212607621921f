package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"possumtracker/internal/model"
	"possumtracker/internal/repository"
)

// StatisticsRepository implements repository.StatisticsRepository for PostgreSQL.
type StatisticsRepository struct {
	db *DB
}

// NewStatisticsRepository creates a new PostgreSQL statistics repository.
func NewStatisticsRepository(db *DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

func (r *StatisticsRepository) RegionTrack(ctx context.Context, visitID int64) ([]model.DetectionEvent, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT r.roi_id, r.roi_timestamp, r.bbox_x1, r.bbox_y1, r.bbox_x2, r.bbox_y2
		FROM rois r
		JOIN frames f ON f.frame_id = r.frame_id
		WHERE f.visit_id = $1
		ORDER BY r.roi_timestamp, r.roi_id
	`, visitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query region track: %w", err)
	}
	defer rows.Close()

	var events []model.DetectionEvent
	for rows.Next() {
		var (
			ev  model.DetectionEvent
			box model.BoundingBox
		)
		if err := rows.Scan(&ev.RegionID, &ev.Timestamp, &box.X1, &box.Y1, &box.X2, &box.Y2); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		events = append(events, model.NewDetectionEvent(ev.RegionID, ev.Timestamp, box))
	}
	return events, rows.Err()
}

func (r *StatisticsRepository) VisitDuration(ctx context.Context, visitID int64) (float64, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var duration *float64
	err = conn.QueryRow(ctx, `SELECT duration_seconds FROM visits WHERE visit_id = $1`, visitID).Scan(&duration)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("visit %d: %w", visitID, repository.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get visit duration: %w", err)
	}
	if duration == nil {
		return 0, nil
	}
	return *duration, nil
}

func (r *StatisticsRepository) UpsertStatistics(ctx context.Context, s model.VisitStatistics) error {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO visit_statistics (
			visit_id, visit_duration_sec_stored, visit_duration_sec_calculated,
			moving_time_sec, idle_time_sec, activity_ratio,
			total_distance_cm, avg_speed_cm_per_sec, max_speed_cm_per_sec, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (visit_id) DO UPDATE SET
			visit_duration_sec_stored = EXCLUDED.visit_duration_sec_stored,
			visit_duration_sec_calculated = EXCLUDED.visit_duration_sec_calculated,
			moving_time_sec = EXCLUDED.moving_time_sec,
			idle_time_sec = EXCLUDED.idle_time_sec,
			activity_ratio = EXCLUDED.activity_ratio,
			total_distance_cm = EXCLUDED.total_distance_cm,
			avg_speed_cm_per_sec = EXCLUDED.avg_speed_cm_per_sec,
			max_speed_cm_per_sec = EXCLUDED.max_speed_cm_per_sec,
			calculated_at = EXCLUDED.calculated_at
	`, s.VisitID, s.StoredDurationSec, s.TotalTimeSec,
		s.MovingTimeSec, s.IdleTimeSec, s.ActivityRatio,
		s.TotalDistanceCM, s.AvgSpeedCMPerSec, s.PeakSpeedCMPerSec, s.CalculatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert statistics: %w", err)
	}
	return nil
}

func (r *StatisticsRepository) GetStatistics(ctx context.Context, visitID int64) (*model.VisitStatistics, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	var (
		s      model.VisitStatistics
		stored *float64
	)
	err = conn.QueryRow(ctx, `
		SELECT visit_id, visit_duration_sec_stored, visit_duration_sec_calculated,
			moving_time_sec, idle_time_sec, activity_ratio,
			total_distance_cm, avg_speed_cm_per_sec, max_speed_cm_per_sec, calculated_at
		FROM visit_statistics WHERE visit_id = $1
	`, visitID).Scan(&s.VisitID, &stored, &s.TotalTimeSec,
		&s.MovingTimeSec, &s.IdleTimeSec, &s.ActivityRatio,
		&s.TotalDistanceCM, &s.AvgSpeedCMPerSec, &s.PeakSpeedCMPerSec, &s.CalculatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("statistics for visit %d: %w", visitID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	if stored != nil {
		s.StoredDurationSec = *stored
	}
	return &s, nil
}
