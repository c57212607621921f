package stats

import (
	"context"
	"time"

	"possumtracker/internal/logger"
	"possumtracker/internal/metrics"
	"possumtracker/internal/model"
	"possumtracker/internal/repository"
	"possumtracker/internal/service/trajectory"
)

const (
	// gapSeconds is the interval above which detections were likely missed.
	gapSeconds = 2.0
	// gapMovingSeconds is the moving time credited to a gap interval that moved.
	gapMovingSeconds = 1.0
	// widthShare is the fraction of the box width that counts as movement.
	widthShare = 0.05
)

// Compute reduces a canonical trajectory to movement statistics. It reports
// false when the trajectory has fewer than two points or no elapsed time.
func (c Calibration) Compute(points []model.DetectionEvent) (model.VisitStatistics, bool) {
	var s model.VisitStatistics
	if len(points) < 2 {
		return s, false
	}

	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]

		dt := cur.Timestamp.Sub(prev.Timestamp).Seconds()
		if dt <= 0 {
			continue
		}

		dist, coef := c.distance(prev.CenterX, prev.CenterY, cur.CenterX, cur.CenterY)
		threshold := c.NoiseFloorPx * coef
		if w := cur.Width * coef * widthShare; w > threshold {
			threshold = w
		}

		s.TotalTimeSec += dt
		if dist < threshold {
			s.IdleTimeSec += dt
			continue
		}

		moving := dt
		if dt > gapSeconds {
			moving = gapMovingSeconds
		}
		s.MovingTimeSec += moving
		s.IdleTimeSec += dt - moving
		s.TotalDistanceCM += dist

		if speed := dist / moving; speed > s.PeakSpeedCMPerSec {
			s.PeakSpeedCMPerSec = speed
		}
	}

	if s.TotalTimeSec == 0 {
		return s, false
	}

	s.ActivityRatio = s.MovingTimeSec / s.TotalTimeSec
	if s.MovingTimeSec > 0 {
		s.AvgSpeedCMPerSec = s.TotalDistanceCM / s.MovingTimeSec
	}
	return s, true
}

// Engine recomputes and stores visit statistics.
type Engine struct {
	calibration Calibration
	repo        repository.StatisticsRepository
	logger      *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewEngine creates a statistics engine.
func NewEngine(calibration Calibration, repo repository.StatisticsRepository, log *logger.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		calibration: calibration,
		repo:        repo,
		logger:      log,
		metrics:     m,
		now:         time.Now,
	}
}

// Recalculate loads the visit's regions, computes statistics and upserts them.
// It returns nil statistics when the visit has too few points.
func (e *Engine) Recalculate(ctx context.Context, visitID int64) (*model.VisitStatistics, error) {
	events, err := e.repo.RegionTrack(ctx, visitID)
	if err != nil {
		return nil, err
	}

	trajectory.Sort(events)
	points := trajectory.Filter(events)

	s, ok := e.calibration.Compute(points)
	if !ok {
		return nil, nil
	}

	stored, err := e.repo.VisitDuration(ctx, visitID)
	if err != nil {
		return nil, err
	}

	s.VisitID = visitID
	s.StoredDurationSec = stored
	s.CalculatedAt = e.now()
	s = s.Rounded()

	if err := e.repo.UpsertStatistics(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Refresh runs Recalculate and keeps any failure, including a panic, inside
// the call. It is safe to use from background pipelines.
func (e *Engine) Refresh(ctx context.Context, visitID int64) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.StatsFailures.Add(1)
			e.logger.Error("Statistics for visit %d panicked: %v", visitID, r)
		}
	}()

	s, err := e.Recalculate(ctx, visitID)
	if err != nil {
		e.metrics.StatsFailures.Add(1)
		e.logger.Error("Failed to compute statistics for visit %d: %v", visitID, err)
		return
	}
	if s == nil {
		e.logger.Info("Visit %d has too few points for statistics", visitID)
		return
	}
	e.logger.Info("Visit %d statistics: %.2f cm over %.3fs moving, ratio %.3f",
		visitID, s.TotalDistanceCM, s.MovingTimeSec, s.ActivityRatio)
}
