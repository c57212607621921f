package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"possumtracker/internal/model"
	"possumtracker/internal/repository"
)

// StatisticsRepository implements repository.StatisticsRepository for SQLite.
type StatisticsRepository struct {
	db *DB
}

// NewStatisticsRepository creates a new SQLite statistics repository.
func NewStatisticsRepository(db *DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// RegionTrack returns the visit's regions ordered by timestamp, then region id.
func (r *StatisticsRepository) RegionTrack(ctx context.Context, visitID int64) ([]model.DetectionEvent, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `
		SELECT r.roi_id, r.roi_timestamp, r.bbox_x1, r.bbox_y1, r.bbox_x2, r.bbox_y2
		FROM rois r
		JOIN frames f ON f.frame_id = r.frame_id
		WHERE f.visit_id = ?
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

// VisitDuration returns the stored visit duration, or 0 when the visit is still open.
func (r *StatisticsRepository) VisitDuration(ctx context.Context, visitID int64) (float64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var duration sql.NullFloat64
	err = conn.QueryRowContext(ctx, `SELECT duration_seconds FROM visits WHERE visit_id = ?`, visitID).Scan(&duration)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("visit %d: %w", visitID, repository.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get visit duration: %w", err)
	}
	return duration.Float64, nil
}

// UpsertStatistics writes one row per visit, replacing any earlier computation.
func (r *StatisticsRepository) UpsertStatistics(ctx context.Context, s model.VisitStatistics) error {
	r.db.Lock()
	defer r.db.Unlock()

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `
		INSERT INTO visit_statistics (
			visit_id, visit_duration_sec_stored, visit_duration_sec_calculated,
			moving_time_sec, idle_time_sec, activity_ratio,
			total_distance_cm, avg_speed_cm_per_sec, max_speed_cm_per_sec, calculated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(visit_id) DO UPDATE SET
			visit_duration_sec_stored = excluded.visit_duration_sec_stored,
			visit_duration_sec_calculated = excluded.visit_duration_sec_calculated,
			moving_time_sec = excluded.moving_time_sec,
			idle_time_sec = excluded.idle_time_sec,
			activity_ratio = excluded.activity_ratio,
			total_distance_cm = excluded.total_distance_cm,
			avg_speed_cm_per_sec = excluded.avg_speed_cm_per_sec,
			max_speed_cm_per_sec = excluded.max_speed_cm_per_sec,
			calculated_at = excluded.calculated_at
	`, s.VisitID, s.StoredDurationSec, s.TotalTimeSec,
		s.MovingTimeSec, s.IdleTimeSec, s.ActivityRatio,
		s.TotalDistanceCM, s.AvgSpeedCMPerSec, s.PeakSpeedCMPerSec, s.CalculatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert statistics: %w", err)
	}
	return nil
}

// GetStatistics retrieves the stored statistics of a visit.
func (r *StatisticsRepository) GetStatistics(ctx context.Context, visitID int64) (*model.VisitStatistics, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var (
		s      model.VisitStatistics
		stored sql.NullFloat64
	)
	err = conn.QueryRowContext(ctx, `
		SELECT visit_id, visit_duration_sec_stored, visit_duration_sec_calculated,
			moving_time_sec, idle_time_sec, activity_ratio,
			total_distance_cm, avg_speed_cm_per_sec, max_speed_cm_per_sec, calculated_at
		FROM visit_statistics WHERE visit_id = ?
	`, visitID).Scan(&s.VisitID, &stored, &s.TotalTimeSec,
		&s.MovingTimeSec, &s.IdleTimeSec, &s.ActivityRatio,
		&s.TotalDistanceCM, &s.AvgSpeedCMPerSec, &s.PeakSpeedCMPerSec, &s.CalculatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("statistics for visit %d: %w", visitID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	s.StoredDurationSec = stored.Float64
	return &s, nil
}
