// Package pipeline runs the capture loop that feeds frames to the visit session manager.
package pipeline

import (
	"context"
	"encoding/base64"
	"time"

	"possumtracker/internal/dto"
	"possumtracker/internal/logger"
	"possumtracker/internal/metrics"
	"possumtracker/internal/model"
	"possumtracker/internal/service/session"
)

const heartbeatInterval = 60 * time.Second

// Frame is a captured frame the loop owns until Close.
type Frame interface {
	session.Frame
	Close()
}

// Source yields camera frames.
type Source interface {
	Next() (Frame, error)
	Reconnect(ctx context.Context) error
	FPS() float64
}

// Analyzer finds motion and classifies it.
type Analyzer interface {
	Analyze(f session.Frame) (motion, positives []model.BoundingBox, err error)
	Preview(f session.Frame, positives, motion []model.BoundingBox) ([]byte, error)
}

// Sessions is the part of the session manager the loop drives.
type Sessions interface {
	Observe(ctx context.Context, f session.Frame, obs session.Observation)
	Record(f session.Frame)
	RecentPositive() bool
	State() model.VisitState
	SetFPS(fps float64)
	Close(reason session.CloseReason) bool
}

// Viewers receives preview frames while anyone is watching.
type Viewers interface {
	GetClientCount() int
	BroadcastJSON(v interface{})
}

// Runner reads the camera, processes every skip-th frame and records the rest.
type Runner struct {
	source   Source
	analyzer Analyzer
	sessions Sessions
	viewers  Viewers
	skip     int
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	captured      int
	lastHeartbeat time.Time
}

// NewRunner creates a runner. viewers may be nil.
func NewRunner(source Source, analyzer Analyzer, sessions Sessions, viewers Viewers, skip int, log *logger.Logger, m *metrics.Metrics) *Runner {
	if skip < 1 {
		skip = 1
	}
	return &Runner{
		source:   source,
		analyzer: analyzer,
		sessions: sessions,
		viewers:  viewers,
		skip:     skip,
		logger:   log,
		metrics:  m,
		now:      time.Now,
	}
}

// Run loops until ctx is done, then closes any open visit.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("🎬 Capture loop started - processing every %d frame(s)", r.skip)
	r.sessions.SetFPS(r.source.FPS())
	r.lastHeartbeat = r.now()

	defer func() {
		if r.sessions.Close(session.ReasonShutdown) {
			r.logger.Info("Open visit closed on shutdown")
		}
		r.logger.Info("🛑 Capture loop stopped")
	}()

	for ctx.Err() == nil {
		f, err := r.source.Next()
		if err != nil {
			r.metrics.ReadErrors.Add(1)
			r.logger.Warning("⚠️  Frame read failed, reconnecting: %v", err)
			if err := r.source.Reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Error("Reconnect failed: %v", err)
				continue
			}
			r.sessions.SetFPS(r.source.FPS())
			continue
		}

		r.handle(ctx, f)
		f.Close()
	}
}

func (r *Runner) handle(ctx context.Context, f Frame) {
	r.metrics.FramesRead.Add(1)
	r.captured++

	if r.captured%r.skip == 0 {
		r.process(ctx, f)
	}
	r.sessions.Record(f)

	if now := r.now(); now.Sub(r.lastHeartbeat) >= heartbeatInterval {
		r.lastHeartbeat = now
		if r.sessions.State() == model.StateIdle && !r.sessions.RecentPositive() {
			r.logger.Info("No possum visits in the last minute")
		}
	}
}

func (r *Runner) process(ctx context.Context, f Frame) {
	r.metrics.FramesProcessed.Add(1)

	motion, positives, err := r.analyzer.Analyze(f)
	r.sessions.Observe(ctx, f, session.Observation{
		Candidates: len(motion),
		Positives:  positives,
		Err:        err,
	})

	if r.viewers == nil || r.viewers.GetClientCount() == 0 {
		return
	}
	img, err := r.analyzer.Preview(f, positives, motion)
	if err != nil {
		r.logger.Warning("Failed to render preview of frame %d: %v", f.Index(), err)
		return
	}
	r.viewers.BroadcastJSON(dto.PreviewFrame{
		Type:  "preview",
		Index: f.Index(),
		Image: base64.StdEncoding.EncodeToString(img),
	})
}
