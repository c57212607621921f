package stats

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"possumtracker/internal/logger"
	"possumtracker/internal/metrics"
	"possumtracker/internal/model"
	"possumtracker/internal/repository/sqlite"
)

var t0 = time.Date(2025, 3, 3, 22, 0, 0, 0, time.UTC)

func testCalibration() Calibration {
	return Calibration{
		SplitX:       700,
		Left:         Zone{Name: "left", Transform: Identity(), PixelToCM: 0.5},
		Right:        Zone{Name: "right", Transform: Identity(), PixelToCM: 0.5},
		NoiseFloorPx: 10,
	}
}

func point(sec float64, x, y, width float64) model.DetectionEvent {
	return model.DetectionEvent{
		Timestamp: t0.Add(time.Duration(sec * float64(time.Second))),
		CenterX:   x,
		CenterY:   y,
		Width:     width,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// ========================================
// Compute Tests
// ========================================

func TestCompute_OneSecondMove(t *testing.T) {
	s, ok := testCalibration().Compute([]model.DetectionEvent{
		point(0, 0, 0, 20),
		point(1, 10, 0, 20),
	})
	if !ok {
		t.Fatal("Expected statistics")
	}

	checks := []struct {
		name      string
		got, want float64
	}{
		{"distance", s.TotalDistanceCM, 10},
		{"moving", s.MovingTimeSec, 1},
		{"idle", s.IdleTimeSec, 0},
		{"total", s.TotalTimeSec, 1},
		{"avg speed", s.AvgSpeedCMPerSec, 10},
		{"peak speed", s.PeakSpeedCMPerSec, 10},
		{"ratio", s.ActivityRatio, 1},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
}

func TestCompute_GapCreditsOneMovingSecond(t *testing.T) {
	s, ok := testCalibration().Compute([]model.DetectionEvent{
		point(0, 0, 0, 20),
		point(5, 10, 0, 20),
	})
	if !ok {
		t.Fatal("Expected statistics")
	}
	if !approx(s.MovingTimeSec, 1) || !approx(s.IdleTimeSec, 4) {
		t.Errorf("Expected 1s moving and 4s idle, got %v and %v", s.MovingTimeSec, s.IdleTimeSec)
	}
	if !approx(s.TotalDistanceCM, 10) {
		t.Errorf("Expected full distance 10, got %v", s.TotalDistanceCM)
	}
	if !approx(s.PeakSpeedCMPerSec, 10) {
		t.Errorf("Expected peak speed 10, got %v", s.PeakSpeedCMPerSec)
	}
	if !approx(s.ActivityRatio, 0.2) {
		t.Errorf("Expected ratio 0.2, got %v", s.ActivityRatio)
	}
}

func TestCompute_BelowThresholdIsIdle(t *testing.T) {
	tests := []struct {
		name  string
		dx    float64
		width float64
	}{
		{"under noise floor", 4, 20},
		{"under box share", 8, 400}, // threshold 400*0.5*0.05 = 10
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := testCalibration().Compute([]model.DetectionEvent{
				point(0, 100, 0, tt.width),
				point(1, 100+tt.dx, 0, tt.width),
			})
			if !ok {
				t.Fatal("Expected statistics")
			}
			if s.MovingTimeSec != 0 || !approx(s.IdleTimeSec, 1) || s.TotalDistanceCM != 0 {
				t.Errorf("Expected an idle interval, got %+v", s)
			}
			if s.AvgSpeedCMPerSec != 0 || s.PeakSpeedCMPerSec != 0 {
				t.Errorf("Expected zero speeds, got %+v", s)
			}
		})
	}
}

func TestCompute_CrossZoneUsesAverageCoefficient(t *testing.T) {
	c := testCalibration()
	c.Right.PixelToCM = 1.5
	// A right-zone transform that would inflate distances if it were used.
	c.Right.Transform = Homography{{100, 0, 0}, {0, 100, 0}, {0, 0, 1}}

	s, ok := c.Compute([]model.DetectionEvent{
		point(0, 690, 0, 20),
		point(1, 710, 0, 20),
	})
	if !ok {
		t.Fatal("Expected statistics")
	}
	// 20px * (0.5+1.5)/2
	if !approx(s.TotalDistanceCM, 20) {
		t.Errorf("Expected 20 cm, got %v", s.TotalDistanceCM)
	}
}

func TestCompute_SameZoneUsesHomography(t *testing.T) {
	c := testCalibration()
	c.Right.Transform = Homography{{2, 0, 0}, {0, 2, 0}, {0, 0, 1}}

	s, _ := c.Compute([]model.DetectionEvent{
		point(0, 800, 0, 20),
		point(1, 810, 0, 20),
	})
	if !approx(s.TotalDistanceCM, 20) {
		t.Errorf("Expected 20 cm through the right transform, got %v", s.TotalDistanceCM)
	}
}

func TestCompute_HorizonFallsBackToPixelScale(t *testing.T) {
	c := testCalibration()
	// w = 1 - 0.5*y vanishes at y = 2
	c.Left.Transform = Homography{{1, 0, 0}, {0, 1, 0}, {0, -0.5, 1}}

	s, ok := c.Compute([]model.DetectionEvent{
		point(0, 0, 2, 20),
		point(1, 40, 2, 20),
	})
	if !ok {
		t.Fatal("Expected statistics")
	}
	if !approx(s.TotalDistanceCM, 20) || !approx(s.AvgSpeedCMPerSec, 20) {
		t.Errorf("Expected 20 cm at 20 cm/s, got %.3f cm at %.3f cm/s", s.TotalDistanceCM, s.AvgSpeedCMPerSec)
	}
	if !approx(s.MovingTimeSec, 1) {
		t.Errorf("Expected 1s moving, got %.3f", s.MovingTimeSec)
	}
}

func TestCompute_NotEnoughTime(t *testing.T) {
	tests := []struct {
		name   string
		points []model.DetectionEvent
	}{
		{"empty", nil},
		{"single point", []model.DetectionEvent{point(0, 0, 0, 20)}},
		{"same timestamp", []model.DetectionEvent{point(0, 0, 0, 20), point(0, 50, 0, 20)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := testCalibration().Compute(tt.points); ok {
				t.Error("Expected no statistics")
			}
		})
	}
}

func TestCompute_SkipsNonPositiveIntervals(t *testing.T) {
	s, ok := testCalibration().Compute([]model.DetectionEvent{
		point(0, 0, 0, 20),
		point(0, 300, 0, 20),
		point(1, 310, 0, 20),
	})
	if !ok {
		t.Fatal("Expected statistics")
	}
	if !approx(s.TotalTimeSec, 1) || !approx(s.TotalDistanceCM, 10) {
		t.Errorf("Expected only the positive interval, got %+v", s)
	}
}

func TestHomography_Apply(t *testing.T) {
	h := Homography{{1, 0, 5}, {0, 1, -5}, {0, 0, 1}}
	x, y := h.Apply(10, 10)
	if x != 15 || y != 5 {
		t.Errorf("Expected (15,5), got (%v,%v)", x, y)
	}
}

// ========================================
// Engine Tests
// ========================================

func TestEngine_RecalculateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "stats.db"), 2)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	visits := sqlite.NewVisitRepository(db)
	repo := sqlite.NewStatisticsRepository(db)

	visitID, _ := visits.CreateVisit(ctx, t0)
	for _, r := range []struct {
		sec float64
		box model.BoundingBox
	}{
		{0, model.BoundingBox{X1: 0, Y1: 0, X2: 20, Y2: 20}},
		{1, model.BoundingBox{X1: 300, Y1: 0, X2: 320, Y2: 20}},
		{1, model.BoundingBox{X1: 10, Y1: 0, X2: 30, Y2: 20}},
	} {
		ts := t0.Add(time.Duration(r.sec * float64(time.Second)))
		frameID, err := visits.InsertFrame(ctx, visitID, ts)
		if err != nil {
			t.Fatalf("InsertFrame failed: %v", err)
		}
		if _, err := visits.InsertRegion(ctx, frameID, r.box, ts); err != nil {
			t.Fatalf("InsertRegion failed: %v", err)
		}
	}
	visits.CloseVisit(ctx, visitID, t0.Add(time.Second))

	engine := NewEngine(testCalibration(), repo, logger.NewNop(), metrics.New())
	engine.now = func() time.Time { return t0.Add(time.Hour) }

	first, err := engine.Recalculate(ctx, visitID)
	if err != nil || first == nil {
		t.Fatalf("First Recalculate failed: %v", err)
	}
	// The nearer duplicate at t=1 wins: 10px at identity.
	if first.TotalDistanceCM != 10 || first.StoredDurationSec != 1 {
		t.Errorf("Unexpected statistics: %+v", first)
	}

	if _, err := engine.Recalculate(ctx, visitID); err != nil {
		t.Fatalf("Second Recalculate failed: %v", err)
	}
	stored, err := repo.GetStatistics(ctx, visitID)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	stored.CalculatedAt = first.CalculatedAt
	if *stored != *first {
		t.Errorf("Expected %+v after rerun, got %+v", *first, *stored)
	}
}

func TestEngine_RefreshSwallowsFailures(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "stats.db"), 1)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	repo := sqlite.NewStatisticsRepository(db)
	db.Close()

	m := metrics.New()
	engine := NewEngine(testCalibration(), repo, logger.NewNop(), m)
	engine.Refresh(context.Background(), 1)

	if m.StatsFailures.Load() != 1 {
		t.Errorf("Expected 1 statistics failure, got %d", m.StatsFailures.Load())
	}
}
