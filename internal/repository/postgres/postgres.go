package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgx connection pool. Every repository call acquires its own
// connection and releases it on return.
type DB struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for dsn and creates the schema.
func Connect(ctx context.Context, dsn string, maxConns int) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	conn, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS visits (
		visit_id BIGSERIAL PRIMARY KEY,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ,
		night_date TEXT NOT NULL,
		start_hour INTEGER NOT NULL,
		duration_seconds DOUBLE PRECISION,
		video_url TEXT,
		representative_roi_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS frames (
		frame_id BIGSERIAL PRIMARY KEY,
		visit_id BIGINT NOT NULL REFERENCES visits(visit_id) ON DELETE CASCADE,
		frame_timestamp TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rois (
		roi_id BIGSERIAL PRIMARY KEY,
		frame_id BIGINT NOT NULL REFERENCES frames(frame_id) ON DELETE CASCADE,
		roi_url TEXT,
		bbox_x1 INTEGER NOT NULL,
		bbox_y1 INTEGER NOT NULL,
		bbox_x2 INTEGER NOT NULL,
		bbox_y2 INTEGER NOT NULL,
		roi_timestamp TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS visit_statistics (
		visit_id BIGINT PRIMARY KEY REFERENCES visits(visit_id) ON DELETE CASCADE,
		visit_duration_sec_stored DOUBLE PRECISION,
		visit_duration_sec_calculated DOUBLE PRECISION NOT NULL,
		moving_time_sec DOUBLE PRECISION NOT NULL,
		idle_time_sec DOUBLE PRECISION NOT NULL,
		activity_ratio DOUBLE PRECISION NOT NULL,
		total_distance_cm DOUBLE PRECISION NOT NULL,
		avg_speed_cm_per_sec DOUBLE PRECISION NOT NULL,
		max_speed_cm_per_sec DOUBLE PRECISION NOT NULL,
		calculated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_visits_night_date ON visits(night_date);
	CREATE INDEX IF NOT EXISTS idx_frames_visit_id ON frames(visit_id);
	CREATE INDEX IF NOT EXISTS idx_rois_frame_id ON rois(frame_id);
	CREATE INDEX IF NOT EXISTS idx_rois_timestamp ON rois(roi_timestamp);
	`)
	return err
}

func (db *DB) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// Ready pings the database.
func (db *DB) Ready(ctx context.Context) error {
	var one int
	return db.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// Close closes the pool.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}
