package media

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"possumtracker/internal/config"
	"possumtracker/internal/dto"
	"possumtracker/internal/logger"
	"possumtracker/internal/metrics"
	"possumtracker/internal/model"
	"possumtracker/internal/repository"
)

// Uploader copies a local file to object storage and returns its URI.
type Uploader interface {
	Upload(ctx context.Context, localPath, remotePath string) (string, error)
}

// Trimmer cuts a clip down to its first keep frames, rewriting it in place.
type Trimmer interface {
	Trim(path string, keep int, fps float64) error
}

// StatsRefresher recomputes a visit's statistics, keeping failures to itself.
type StatsRefresher interface {
	Refresh(ctx context.Context, visitID int64)
}

// Announcer is told when a visit is fully finalized.
type Announcer interface {
	VisitFinalized(ev dto.VisitEvent)
}

// DispatcherDeps are the dispatcher's collaborators. Announcer may be nil.
type DispatcherDeps struct {
	Visits    repository.VisitRepository
	Store     Uploader
	Trimmer   Trimmer
	Stats     StatsRefresher
	Announcer Announcer
}

type task struct {
	id   string
	snap model.VisitSnapshot
}

// Dispatcher finalizes closed visits on a pool of background workers.
// Every visit is processed in isolation; one visit's failure never reaches
// another visit or the capture loop.
type Dispatcher struct {
	deps            DispatcherDeps
	logger          *logger.Logger
	metrics         *metrics.Metrics
	trailingSeconds float64

	queue   chan task
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher starts cfg.Workers workers.
func NewDispatcher(cfg config.UploadConfig, trailingSeconds float64, deps DispatcherDeps, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	if deps.Announcer == nil {
		deps.Announcer = nopAnnouncer{}
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}

	d := &Dispatcher{
		deps:            deps,
		logger:          log,
		metrics:         m,
		trailingSeconds: trailingSeconds,
		queue:           make(chan task, queueSize),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.logger.Info("📦 Upload dispatcher started with %d worker(s)", workers)
	return d
}

// Submit queues a closed visit. It never blocks: when the queue is full the
// visit gets its own goroutine instead of being dropped.
func (d *Dispatcher) Submit(snap model.VisitSnapshot) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t := task{id: uuid.NewString(), snap: snap}
	if d.stopped {
		d.logger.Error("Dispatcher stopped, visit %d (task %s) not finalized", snap.VisitID, t.id)
		return
	}

	d.metrics.UploadQueueDepth.Add(1)
	select {
	case d.queue <- t:
		d.logger.Info("Visit %d queued for finalizing (task %s)", snap.VisitID, t.id)
	default:
		d.logger.Warning("⚠️  Upload queue full, finalizing visit %d on its own goroutine", snap.VisitID)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.run(t)
		}()
	}
}

// Stop waits for every queued and running visit to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("🛑 All upload workers stopped")
}

func (d *Dispatcher) worker(workerID int) {
	defer d.wg.Done()

	for t := range d.queue {
		d.run(t)
	}

	d.logger.Info("🔧 Upload worker %d stopped", workerID)
}

func (d *Dispatcher) run(t task) {
	d.metrics.UploadQueueDepth.Add(-1)
	log := d.logger.With("task", t.id).With("visit", t.snap.VisitID)

	defer func() {
		if r := recover(); r != nil {
			d.metrics.UploadFailures.Add(1)
			log.Error("Finalizing visit %d panicked: %v", t.snap.VisitID, r)
		}
	}()

	d.finalize(context.Background(), t, log)
}

type storedRegion struct {
	id   int64
	path string
}

// finalize trims the clip, persists media and metadata, then computes statistics.
func (d *Dispatcher) finalize(ctx context.Context, t task, log *logger.Logger) {
	snap := t.snap
	visitID := snap.VisitID

	if snap.ClipPath != "" {
		keep := KeepFrames(snap.StartFrame, snap.LastSeenFrame, snap.FPS, d.trailingSeconds)
		if err := d.deps.Trimmer.Trim(snap.ClipPath, keep, snap.FPS); err != nil {
			log.Warning("Failed to trim clip of visit %d: %v", visitID, err)
		}
	}

	if err := d.deps.Visits.CloseVisit(ctx, visitID, snap.EndTime); err != nil {
		d.fail(log, "Failed to close visit %d: %v", visitID, err)
	}

	var videoURL string
	if snap.ClipPath != "" {
		url, err := d.deps.Store.Upload(ctx, snap.ClipPath, ClipKey(visitID))
		if err != nil {
			d.fail(log, "Failed to upload clip of visit %d: %v", visitID, err)
		} else if err := d.deps.Visits.SetVideoURL(ctx, visitID, url); err != nil {
			d.fail(log, "Failed to store clip url of visit %d: %v", visitID, err)
		} else {
			videoURL = url
		}
	}

	frameIDs := make(map[string]int64, len(snap.Frames))
	for _, f := range snap.Frames {
		id, err := d.deps.Visits.InsertFrame(ctx, visitID, f.Timestamp)
		if err != nil {
			d.fail(log, "Failed to insert frame %d of visit %d: %v", f.Index, visitID, err)
			continue
		}
		frameIDs[f.Path] = id
	}

	regions := make([]storedRegion, 0, len(snap.Regions))
	for _, r := range snap.Regions {
		frameID, ok := frameIDs[r.FramePath]
		if !ok {
			log.Warning("Region skipped, frame not stored: %s", r.FramePath)
			continue
		}
		id, err := d.deps.Visits.InsertRegion(ctx, frameID, r.Box, r.Timestamp)
		if err != nil {
			d.fail(log, "Failed to insert region of visit %d: %v", visitID, err)
			continue
		}
		regions = append(regions, storedRegion{id: id, path: r.Path})
	}

	sampled, rep, ok := SelectRegions(len(regions))
	if !ok {
		if err := d.deps.Visits.SetRepresentativeRegion(ctx, visitID, nil); err != nil {
			d.fail(log, "Failed to clear representative region of visit %d: %v", visitID, err)
		}
	} else {
		repSampled := false
		for _, i := range sampled {
			d.uploadRegion(ctx, log, visitID, regions[i])
			repSampled = repSampled || i == rep
		}
		if !repSampled {
			d.uploadRegion(ctx, log, visitID, regions[rep])
		}
		if err := d.deps.Visits.SetRepresentativeRegion(ctx, visitID, &regions[rep].id); err != nil {
			d.fail(log, "Failed to set representative region of visit %d: %v", visitID, err)
		}
	}

	log.Info("Visit %d stored: %d frames, %d regions, %d uploaded", visitID, len(frameIDs), len(regions), len(sampled))

	d.deps.Stats.Refresh(ctx, visitID)

	d.metrics.VisitsFinalized.Add(1)
	d.deps.Announcer.VisitFinalized(dto.VisitEvent{
		Type:     dto.VisitFinalized,
		VisitID:  visitID,
		TaskID:   t.id,
		At:       time.Now(),
		Regions:  len(regions),
		VideoURL: videoURL,
	})
}

func (d *Dispatcher) uploadRegion(ctx context.Context, log *logger.Logger, visitID int64, r storedRegion) {
	url, err := d.deps.Store.Upload(ctx, r.path, RegionKey(visitID, filepath.Base(r.path)))
	if err != nil {
		d.fail(log, "Failed to upload region %d: %v", r.id, err)
		return
	}
	if err := d.deps.Visits.SetRegionURL(ctx, r.id, url); err != nil {
		d.fail(log, "Failed to store url of region %d: %v", r.id, err)
		return
	}
	d.metrics.RegionsUploaded.Add(1)
}

func (d *Dispatcher) fail(log *logger.Logger, format string, v ...interface{}) {
	d.metrics.UploadFailures.Add(1)
	log.Error(format, v...)
}

type nopAnnouncer struct{}

func (nopAnnouncer) VisitFinalized(dto.VisitEvent) {}
