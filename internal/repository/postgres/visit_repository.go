package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"possumtracker/internal/model"
	"possumtracker/internal/repository"
)

// VisitRepository implements repository.VisitRepository for PostgreSQL.
type VisitRepository struct {
	db *DB
}

// NewVisitRepository creates a new PostgreSQL visit repository.
func NewVisitRepository(db *DB) *VisitRepository {
	return &VisitRepository{db: db}
}

func (r *VisitRepository) exec(ctx context.Context, query string, args ...any) error {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, query, args...)
	return err
}

func (r *VisitRepository) insert(ctx context.Context, query string, args ...any) (int64, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var id int64
	err = conn.QueryRow(ctx, query, args...).Scan(&id)
	return id, err
}

func (r *VisitRepository) CreateVisit(ctx context.Context, start time.Time) (int64, error) {
	id, err := r.insert(ctx, `
		INSERT INTO visits (start_time, night_date, start_hour)
		VALUES ($1, $2, $3) RETURNING visit_id
	`, start, model.NightDate(start), start.Hour())
	if err != nil {
		return 0, fmt.Errorf("failed to insert visit: %w", err)
	}
	return id, nil
}

// CloseVisit stores the end time and duration unless the visit is already closed.
func (r *VisitRepository) CloseVisit(ctx context.Context, visitID int64, end time.Time) error {
	if err := r.exec(ctx, `
		UPDATE visits
		SET end_time = $1, duration_seconds = GREATEST(EXTRACT(EPOCH FROM ($1 - start_time)), 0)
		WHERE visit_id = $2 AND end_time IS NULL
	`, end, visitID); err != nil {
		return fmt.Errorf("failed to close visit: %w", err)
	}
	return nil
}

func (r *VisitRepository) SetVideoURL(ctx context.Context, visitID int64, url string) error {
	if err := r.exec(ctx, `UPDATE visits SET video_url = $1 WHERE visit_id = $2`, url, visitID); err != nil {
		return fmt.Errorf("failed to update video url: %w", err)
	}
	return nil
}

func (r *VisitRepository) InsertFrame(ctx context.Context, visitID int64, ts time.Time) (int64, error) {
	id, err := r.insert(ctx, `
		INSERT INTO frames (visit_id, frame_timestamp) VALUES ($1, $2) RETURNING frame_id
	`, visitID, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to insert frame: %w", err)
	}
	return id, nil
}

func (r *VisitRepository) InsertRegion(ctx context.Context, frameID int64, box model.BoundingBox, ts time.Time) (int64, error) {
	id, err := r.insert(ctx, `
		INSERT INTO rois (frame_id, bbox_x1, bbox_y1, bbox_x2, bbox_y2, roi_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING roi_id
	`, frameID, box.X1, box.Y1, box.X2, box.Y2, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to insert region: %w", err)
	}
	return id, nil
}

func (r *VisitRepository) SetRegionURL(ctx context.Context, regionID int64, url string) error {
	if err := r.exec(ctx, `UPDATE rois SET roi_url = $1 WHERE roi_id = $2`, url, regionID); err != nil {
		return fmt.Errorf("failed to update region url: %w", err)
	}
	return nil
}

func (r *VisitRepository) SetRepresentativeRegion(ctx context.Context, visitID int64, regionID *int64) error {
	if err := r.exec(ctx, `
		UPDATE visits SET representative_roi_id = $1 WHERE visit_id = $2
	`, regionID, visitID); err != nil {
		return fmt.Errorf("failed to update representative region: %w", err)
	}
	return nil
}

func (r *VisitRepository) GetVisit(ctx context.Context, visitID int64) (*model.VisitRecord, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	visit, err := scanVisit(conn.QueryRow(ctx, visitSelect+` WHERE v.visit_id = $1`, visitID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("visit %d: %w", visitID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return visit, nil
}

func (r *VisitRepository) ListRecentVisits(ctx context.Context, limit int) ([]model.VisitRecord, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, visitSelect+` ORDER BY v.start_time DESC LIMIT $1`, limit)
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
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, visitSelect+` WHERE v.night_date = $1 ORDER BY v.start_time, v.visit_id`, nightDate)
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

func (r *VisitRepository) ListClosedVisitIDs(ctx context.Context) ([]int64, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT visit_id FROM visits WHERE end_time IS NOT NULL ORDER BY visit_id`)
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

func (r *VisitRepository) GetRegions(ctx context.Context, visitID int64) ([]model.RegionRecord, error) {
	conn, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT r.roi_id, r.frame_id, r.bbox_x1, r.bbox_y1, r.bbox_x2, r.bbox_y2, r.roi_timestamp, COALESCE(r.roi_url, '')
		FROM rois r
		JOIN frames f ON f.frame_id = r.frame_id
		WHERE f.visit_id = $1
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

func scanVisit(row pgx.Row) (*model.VisitRecord, error) {
	var v model.VisitRecord
	if err := row.Scan(&v.ID, &v.StartTime, &v.EndTime, &v.NightDate, &v.DurationSeconds,
		&v.VideoURL, &v.RepresentativeRegionID, &v.RepresentativeURL); err != nil {
		return nil, err
	}
	return &v, nil
}
