// Package gateway opens the persistence backend selected in the configuration.
package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"possumtracker/internal/config"
	"possumtracker/internal/repository"
	"possumtracker/internal/repository/postgres"
	"possumtracker/internal/repository/sqlite"
)

// Gateway bundles the repositories of one database.
type Gateway struct {
	Driver    string
	Visits    repository.VisitRepository
	Stats     repository.StatisticsRepository
	Dashboard repository.DashboardRepository

	ready func(ctx context.Context) error
	close func() error
}

// Open connects to SQLite or PostgreSQL and migrates the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Gateway, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err := sqlite.New(cfg.Path, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return &Gateway{
			Driver:    "sqlite",
			Visits:    sqlite.NewVisitRepository(db),
			Stats:     sqlite.NewStatisticsRepository(db),
			Dashboard: sqlite.NewDashboardRepository(db),
			ready:     db.Ready,
			close:     db.Close,
		}, nil

	case "postgres":
		db, err := postgres.Connect(ctx, cfg.URL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return &Gateway{
			Driver:    "postgres",
			Visits:    postgres.NewVisitRepository(db),
			Stats:     postgres.NewStatisticsRepository(db),
			Dashboard: postgres.NewDashboardRepository(db),
			ready:     db.Ready,
			close:     db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Ready reports whether the database answers.
func (g *Gateway) Ready(ctx context.Context) error {
	return g.ready(ctx)
}

func (g *Gateway) Close() error {
	return g.close()
}
