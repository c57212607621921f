// Package session decides, frame by frame, when a visit opens, continues and closes.
package session

import (
	"context"
	"path/filepath"
	"time"

	"possumtracker/internal/config"
	"possumtracker/internal/logger"
	"possumtracker/internal/metrics"
	"possumtracker/internal/model"
	"possumtracker/internal/service/trajectory"
)

// CloseReason tells why a visit ended.
type CloseReason string

const (
	ReasonTimeout  CloseReason = "timeout"
	ReasonNoMotion CloseReason = "no_motion"
	ReasonShutdown CloseReason = "shutdown"
)

// ClipFile is the name of the recorded clip inside a visit directory.
const ClipFile = "visit.mp4"

// Frame is one captured camera frame. Implementations carry the pixels.
type Frame interface {
	Index() int
	Time() time.Time
	Size() (width, height int)
}

// Observation is the detector and classifier output for one processed frame.
type Observation struct {
	// Candidates is the number of motion regions the detector found.
	Candidates int
	// Positives are the regions classified as the subject.
	Positives []model.BoundingBox
	// Err is a classifier failure; the frame then counts as negative.
	Err error
}

// VisitStore creates visit rows.
type VisitStore interface {
	CreateVisit(ctx context.Context, start time.Time) (int64, error)
}

// MediaStore writes a visit's frame and region images to local disk.
type MediaStore interface {
	PrepareVisit(visitID int64, start time.Time) (string, error)
	SaveFrame(dir string, f Frame) (string, error)
	SaveRegion(dir string, f Frame, n int, box model.BoundingBox) (string, error)
}

// ClipRecorder records the raw clip of the open visit.
type ClipRecorder interface {
	Start(path string, fps float64, width, height int) error
	Write(f Frame) error
	Stop() error
}

// Prober classifies the region of f inside box.
type Prober interface {
	Probe(f Frame, box model.BoundingBox) (bool, error)
}

// Handoff receives closed visit snapshots for background processing.
// Submit must not block on storage work.
type Handoff interface {
	Submit(snap model.VisitSnapshot)
}

// Notifier is told about visit lifecycle changes.
type Notifier interface {
	VisitOpened(visitID int64, at time.Time)
	VisitClosed(visitID int64, at time.Time, reason CloseReason)
}

// Deps are the manager's collaborators. Notifier may be nil.
type Deps struct {
	Visits   VisitStore
	Media    MediaStore
	Clip     ClipRecorder
	Prober   Prober
	Handoff  Handoff
	Notifier Notifier
}

// Manager is the visit state machine. It is driven by a single capture loop
// and is not safe for concurrent use.
type Manager struct {
	cfg     config.SessionConfig
	deps    Deps
	logger  *logger.Logger
	metrics *metrics.Metrics

	state     model.VisitState
	visit     *model.Visit
	primary   *Window
	secondary *Window
	fps       float64

	processed      int
	lastStaticSave time.Time
	// lastPositive is the most recent positive box seen while idle.
	lastPositive *model.BoundingBox
}

// NewManager creates an idle manager.
func NewManager(cfg config.SessionConfig, deps Deps, log *logger.Logger, m *metrics.Metrics) *Manager {
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	return &Manager{
		cfg:       cfg,
		deps:      deps,
		logger:    log,
		metrics:   m,
		state:     model.StateIdle,
		primary:   NewWindow(cfg.WindowSize),
		secondary: NewWindow(cfg.WindowSize),
		fps:       25,
	}
}

// SetFPS sets the frame rate used for new clips and trimming.
func (m *Manager) SetFPS(fps float64) {
	if fps > 0 {
		m.fps = fps
	}
}

// State returns the current state.
func (m *Manager) State() model.VisitState {
	return m.state
}

// VisitID returns the open visit's id.
func (m *Manager) VisitID() (int64, bool) {
	if m.visit == nil {
		return 0, false
	}
	return m.visit.ID, true
}

// RecentPositive reports whether any frame in the primary window was positive.
func (m *Manager) RecentPositive() bool {
	return m.primary.Any()
}

// Record appends a captured frame to the open visit's clip. It is called for
// every captured frame, after Observe for processed ones.
func (m *Manager) Record(f Frame) {
	if m.visit == nil || m.visit.ClipPath == "" {
		return
	}
	if err := m.deps.Clip.Write(f); err != nil {
		m.logger.Warning("Failed to write frame %d to clip of visit %d: %v", f.Index(), m.visit.ID, err)
	}
}

// Observe feeds one processed frame into the state machine.
func (m *Manager) Observe(ctx context.Context, f Frame, obs Observation) {
	m.processed++
	now := f.Time()

	if m.visit != nil && now.Sub(m.visit.LastSeenTime) > m.cfg.VisitTimeout {
		m.logger.Info("Visit %d idle for over %s", m.visit.ID, m.cfg.VisitTimeout)
		m.Close(ReasonTimeout)
	}

	if obs.Err != nil {
		m.metrics.ClassifierFailures.Add(1)
		m.logger.Warning("Classifier failed on frame %d, counting it as negative: %v", f.Index(), obs.Err)
	}
	positive := obs.Err == nil && len(obs.Positives) > 0
	m.primary.Push(positive)

	if m.state == model.StateIdle {
		if positive {
			box := obs.Positives[trajectory.Nearest(obs.Positives, m.lastPositive)]
			m.lastPositive = &box
		}
		if !m.primary.Full() || m.primary.Count() < m.cfg.WindowThreshold {
			return
		}
		if !m.open(ctx, f) {
			return
		}
	}

	if positive {
		if m.state == model.StateActiveNoMotion {
			m.secondary.Clear()
		}
		m.state = model.StateActive

		boxes := obs.Positives
		last := boxes[trajectory.Nearest(boxes, m.visit.LastBox)]
		m.visit.LastBox = &last
		m.visit.Seen(now, f.Index())

		if m.processed%m.cfg.FrameSaveInterval == 0 {
			m.save(f, boxes)
		}
		return
	}

	if obs.Candidates == 0 && m.visit.LastBox != nil {
		m.state = model.StateActiveNoMotion
		m.probe(f)
	}
}

// probe classifies the last known box directly while the motion detector is quiet.
func (m *Manager) probe(f Frame) {
	w, h := f.Size()
	box := m.visit.LastBox.Clamp(w, h)

	present := false
	if !box.Empty() {
		m.metrics.SecondaryProbes.Add(1)
		ok, err := m.deps.Prober.Probe(f, box)
		if err != nil {
			m.metrics.ClassifierFailures.Add(1)
			m.logger.Warning("Probe of visit %d failed on frame %d: %v", m.visit.ID, f.Index(), err)
		} else {
			present = ok
		}
	}
	m.secondary.Push(present)

	if !m.secondary.Full() {
		return
	}

	switch n := m.secondary.Count(); {
	case n >= m.cfg.WindowThreshold:
		now := f.Time()
		m.visit.Seen(now, f.Index())
		if m.lastStaticSave.IsZero() || now.Sub(m.lastStaticSave) >= m.cfg.StaticSaveInterval {
			m.lastStaticSave = now
			m.save(f, []model.BoundingBox{box})
		}
	case n <= m.cfg.NoMotionCloseMax:
		m.logger.Info("Visit %d: subject gone at the last known position (%d/%d)", m.visit.ID, n, m.secondary.Len())
		m.Close(ReasonNoMotion)
	}
}

// open starts a visit at f. A failed visit insert keeps the manager idle.
func (m *Manager) open(ctx context.Context, f Frame) bool {
	start := f.Time()
	id, err := m.deps.Visits.CreateVisit(ctx, start)
	if err != nil {
		m.logger.Error("Failed to create visit: %v", err)
		return false
	}

	v := model.NewVisit(id, start, f.Index())
	v.LastBox = m.lastPositive
	m.lastPositive = nil
	if dir, err := m.deps.Media.PrepareVisit(id, start); err != nil {
		m.logger.Warning("Visit %d has no media directory: %v", id, err)
	} else {
		v.Dir = dir
		v.ClipPath = filepath.Join(dir, ClipFile)
		w, h := f.Size()
		if err := m.deps.Clip.Start(v.ClipPath, m.fps, w, h); err != nil {
			m.logger.Warning("Visit %d will have no clip: %v", id, err)
			v.ClipPath = ""
		}
	}

	m.visit = v
	m.state = model.StateActive
	m.secondary.Clear()
	m.lastStaticSave = time.Time{}

	m.metrics.VisitsOpened.Add(1)
	m.logger.Info("Visit %d started at %s", id, start.Format("2006-01-02 15:04:05"))
	m.deps.Notifier.VisitOpened(id, start)
	return true
}

// save writes the frame and its regions and queues them for upload.
func (m *Manager) save(f Frame, boxes []model.BoundingBox) {
	v := m.visit
	if v.Dir == "" {
		return
	}

	framePath, err := m.deps.Media.SaveFrame(v.Dir, f)
	if err != nil {
		m.logger.Warning("Failed to save frame %d of visit %d: %v", f.Index(), v.ID, err)
		return
	}
	v.FrameQueue = append(v.FrameQueue, model.FrameSave{Path: framePath, Index: f.Index(), Timestamp: f.Time()})

	for n, box := range boxes {
		path, err := m.deps.Media.SaveRegion(v.Dir, f, n, box)
		if err != nil {
			m.logger.Warning("Failed to save region %d of frame %d: %v", n, f.Index(), err)
			continue
		}
		v.RegionQueue = append(v.RegionQueue, model.RegionSave{
			Path:      path,
			Box:       box,
			FramePath: framePath,
			Timestamp: f.Time(),
		})
	}
}

// Close ends the open visit, hands its snapshot off and returns to IDLE.
// It reports false when no visit is open.
func (m *Manager) Close(reason CloseReason) bool {
	v := m.visit
	if v == nil || !v.Close(v.LastSeenTime) {
		return false
	}

	if v.ClipPath != "" {
		if err := m.deps.Clip.Stop(); err != nil {
			m.logger.Warning("Failed to finalize clip of visit %d: %v", v.ID, err)
		}
	}

	snap := v.Snapshot()
	snap.FPS = m.fps

	m.visit = nil
	m.state = model.StateIdle
	m.primary.Clear()
	m.secondary.Clear()
	m.lastPositive = nil

	m.metrics.VisitsClosed.Add(1)
	switch reason {
	case ReasonTimeout:
		m.metrics.TimeoutCloses.Add(1)
	case ReasonNoMotion:
		m.metrics.NoMotionCloses.Add(1)
	}
	m.logger.Info("Visit %d closed (%s): %d frames, %d regions queued",
		v.ID, reason, len(snap.Frames), len(snap.Regions))

	m.deps.Notifier.VisitClosed(v.ID, *v.EndTime, reason)
	m.deps.Handoff.Submit(snap)
	return true
}

type nopNotifier struct{}

func (nopNotifier) VisitOpened(int64, time.Time)              {}
func (nopNotifier) VisitClosed(int64, time.Time, CloseReason) {}
