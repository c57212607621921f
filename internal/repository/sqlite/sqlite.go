package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection pool. Writers serialize on the write lock;
// every operation borrows its own connection and hands it back on return.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection pool.
func New(dbPath string, maxConns int) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxConns < 1 {
		maxConns = 1
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS visits (
		visit_id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		night_date TEXT NOT NULL,
		start_hour INTEGER NOT NULL,
		duration_seconds REAL,
		video_url TEXT,
		representative_roi_id INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS frames (
		frame_id INTEGER PRIMARY KEY AUTOINCREMENT,
		visit_id INTEGER NOT NULL,
		frame_timestamp DATETIME NOT NULL,
		FOREIGN KEY (visit_id) REFERENCES visits(visit_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS rois (
		roi_id INTEGER PRIMARY KEY AUTOINCREMENT,
		frame_id INTEGER NOT NULL,
		roi_url TEXT,
		bbox_x1 INTEGER NOT NULL,
		bbox_y1 INTEGER NOT NULL,
		bbox_x2 INTEGER NOT NULL,
		bbox_y2 INTEGER NOT NULL,
		roi_timestamp DATETIME NOT NULL,
		FOREIGN KEY (frame_id) REFERENCES frames(frame_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS visit_statistics (
		visit_id INTEGER PRIMARY KEY,
		visit_duration_sec_stored REAL,
		visit_duration_sec_calculated REAL NOT NULL,
		moving_time_sec REAL NOT NULL,
		idle_time_sec REAL NOT NULL,
		activity_ratio REAL NOT NULL,
		total_distance_cm REAL NOT NULL,
		avg_speed_cm_per_sec REAL NOT NULL,
		max_speed_cm_per_sec REAL NOT NULL,
		calculated_at DATETIME NOT NULL,
		FOREIGN KEY (visit_id) REFERENCES visits(visit_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_visits_night_date ON visits(night_date);
	CREATE INDEX IF NOT EXISTS idx_frames_visit_id ON frames(visit_id);
	CREATE INDEX IF NOT EXISTS idx_rois_frame_id ON rois(frame_id);
	CREATE INDEX IF NOT EXISTS idx_rois_timestamp ON rois(roi_timestamp);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Ready pings the database.
func (db *DB) Ready(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Acquire borrows a single connection from the pool. Callers must Close it
// on every path to return it.
func (db *DB) Acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
