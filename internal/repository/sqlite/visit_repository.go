package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"possumtracker/internal/model"
	"possumtracker/internal/repository"
)

// VisitRepository implements repository.VisitRepository for SQLite.
type VisitRepository struct {
	db *DB
}

// NewVisitRepository creates a new SQLite visit repository.
func NewVisitRepository(db *DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// exec runs one write statement on a borrowed connection.
func (r *VisitRepository) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	r.db.Lock()
	defer r.db.Unlock()

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return conn.ExecContext(ctx, query, args...)
}

// CreateVisit inserts a new open visit and returns its id.
func (r *VisitRepository) CreateVisit(ctx context.Context, start time.Time) (int64, error) {
	result, err := r.exec(ctx, `
		INSERT INTO visits (start_time, night_date, start_hour)
		VALUES (?, ?, ?)
	`, start.UTC(), model.NightDate(start), start.Hour())
	if err != nil {
		return 0, fmt.Errorf("failed to insert visit: %w", err)
	}

	return result.LastInsertId()
}

// CloseVisit stores the end time. A visit that already has one keeps it.
func (r *VisitRepository) CloseVisit(ctx context.Context, visitID int64, end time.Time) error {
	visit, err := r.GetVisit(ctx, visitID)
	if err != nil {
		return err
	}
	duration := end.Sub(visit.StartTime).Seconds()
	if duration < 0 {
		duration = 0
	}

	if _, err := r.exec(ctx, `
		UPDATE visits SET end_time = ?, duration_seconds = ?
		WHERE visit_id = ? AND end_time IS NULL
	`, end.UTC(), duration, visitID); err != nil {
		return fmt.Errorf("failed to close visit: %w", err)
	}
	return nil
}

// SetVideoURL stores the uploaded clip location.
func (r *VisitRepository) SetVideoURL(ctx context.Context, visitID int64, url string) error {
	if _, err := r.exec(ctx, `UPDATE visits SET video_url = ? WHERE visit_id = ?`, url, visitID); err != nil {
		return fmt.Errorf("failed to update video url: %w", err)
	}
	return nil
}

// InsertFrame adds a frame row for a visit.
func (r *VisitRepository) InsertFrame(ctx context.Context, visitID int64, ts time.Time) (int64, error) {
	result, err := r.exec(ctx, `
		INSERT INTO frames (visit_id, frame_timestamp) VALUES (?, ?)
	`, visitID, ts.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert frame: %w", err)
	}

	return result.LastInsertId()
}

// InsertRegion adds a region row for a frame.
func (r *VisitRepository) InsertRegion(ctx context.Context, frameID int64, box model.BoundingBox, ts time.Time) (int64, error) {
	result, err := r.exec(ctx, `
		INSERT INTO rois (frame_id, bbox_x1, bbox_y1, bbox_x2, bbox_y2, roi_timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, frameID, box.X1, box.Y1, box.X2, box.Y2, ts.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert region: %w", err)
	}

	return result.LastInsertId()
}

// SetRegionURL stores the uploaded region image location.
func (r *VisitRepository) SetRegionURL(ctx context.Context, regionID int64, url string) error {
	if _, err := r.exec(ctx, `UPDATE rois SET roi_url = ? WHERE roi_id = ?`, url, regionID); err != nil {
		return fmt.Errorf("failed to update region url: %w", err)
	}
	return nil
}

// SetRepresentativeRegion points the visit at its summary region; nil clears it.
func (r *VisitRepository) SetRepresentativeRegion(ctx context.Context, visitID int64, regionID *int64) error {
	if _, err := r.exec(ctx, `
		UPDATE visits SET representative_roi_id = ? WHERE visit_id = ?
	`, nullableID(regionID), visitID); err != nil {
		return fmt.Errorf("failed to update representative region: %w", err)
	}
	return nil
}

// GetVisit retrieves a visit by id.
func (r *VisitRepository) GetVisit(ctx context.Context, visitID int64) (*model.VisitRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	row := conn.QueryRowContext(ctx, visitSelect+` WHERE v.visit_id = ?`, visitID)
	visit, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("visit %d: %w", visitID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return visit, nil
}

// ListRecentVisits returns the latest visits, newest first.
func (r *VisitRepository) ListRecentVisits(ctx context.Context, limit int) ([]model.VisitRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, visitSelect+` ORDER BY v.start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []model.VisitRecord
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, *visit)
	}
	return visits, rows.Err()
}

// ListVisitsByNight returns the visits of one night (YYYY-MM-DD), oldest first.
func (r *VisitRepository) ListVisitsByNight(ctx context.Context, nightDate string) ([]model.VisitRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, visitSelect+` WHERE v.night_date = ? ORDER BY v.start_time, v.visit_id`, nightDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits of night %s: %w", nightDate, err)
	}
	defer rows.Close()

	var visits []model.VisitRecord
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, *visit)
	}
	return visits, rows.Err()
}

// ListClosedVisitIDs returns ids of all visits with an end time.
func (r *VisitRepository) ListClosedVisitIDs(ctx context.Context) ([]int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT visit_id FROM visits WHERE end_time IS NOT NULL ORDER BY visit_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query visit ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan visit id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetRegions returns all regions of a visit in insertion order.
func (r *VisitRepository) GetRegions(ctx context.Context, visitID int64) ([]model.RegionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `
		SELECT r.roi_id, r.frame_id, r.bbox_x1, r.bbox_y1, r.bbox_x2, r.bbox_y2, r.roi_timestamp, COALESCE(r.roi_url, '')
		FROM rois r
		JOIN frames f ON f.frame_id = r.frame_id
		WHERE f.visit_id = ?
		ORDER BY r.roi_id
	`, visitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query regions: %w", err)
	}
	defer rows.Close()

	var regions []model.RegionRecord
	for rows.Next() {
		var reg model.RegionRecord
		if err := rows.Scan(&reg.ID, &reg.FrameID, &reg.Box.X1, &reg.Box.Y1, &reg.Box.X2, &reg.Box.Y2, &reg.Timestamp, &reg.URL); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		regions = append(regions, reg)
	}
	return regions, rows.Err()
}

const visitSelect = `
	SELECT v.visit_id, v.start_time, v.end_time, v.night_date, v.duration_seconds,
		COALESCE(v.video_url, ''), v.representative_roi_id, COALESCE(r.roi_url, '')
	FROM visits v
	LEFT JOIN rois r ON r.roi_id = v.representative_roi_id`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVisit(s scanner) (*model.VisitRecord, error) {
	var (
		v        model.VisitRecord
		end      sql.NullTime
		duration sql.NullFloat64
		rep      sql.NullInt64
	)
	if err := s.Scan(&v.ID, &v.StartTime, &end, &v.NightDate, &duration, &v.VideoURL, &rep, &v.RepresentativeURL); err != nil {
		return nil, err
	}
	if end.Valid {
		t := end.Time
		v.EndTime = &t
	}
	if duration.Valid {
		d := duration.Float64
		v.DurationSeconds = &d
	}
	if rep.Valid {
		id := rep.Int64
		v.RepresentativeRegionID = &id
	}
	return &v, nil
}

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
