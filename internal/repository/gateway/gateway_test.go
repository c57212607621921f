package gateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"possumtracker/internal/config"
)

func TestOpen_SQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "visits.db")
	g, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", Path: path, MaxConns: 2})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer g.Close()

	ctx := context.Background()
	id, err := g.Visits.CreateVisit(ctx, time.Date(2025, 3, 3, 22, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CreateVisit failed: %v", err)
	}
	total, err := g.Dashboard.TotalVisits(ctx)
	if err != nil || total != 1 {
		t.Errorf("Expected 1 visit, got %d (%v)", total, err)
	}
	if d, err := g.Stats.VisitDuration(ctx, id); err != nil || d != 0 {
		t.Errorf("Open visit should have no duration yet, got %v (%v)", d, err)
	}
	if err := g.Ready(ctx); err != nil {
		t.Errorf("Expected database to be ready, got %v", err)
	}
}

func TestGateway_NotReadyAfterClose(t *testing.T) {
	g, err := Open(context.Background(), config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "visits.db")})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	g.Close()

	if err := g.Ready(context.Background()); err == nil {
		t.Error("Expected a closed database to report not ready")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql"}); err == nil {
		t.Error("Expected unknown driver to fail")
	}
}
