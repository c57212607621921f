package model

import "time"

// VisitState is the session state machine position.
type VisitState int

const (
	StateIdle VisitState = iota
	StateActive
	StateActiveNoMotion
)

func (s VisitState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateActiveNoMotion:
		return "ACTIVE_NO_MOTION"
	default:
		return "UNKNOWN"
	}
}

// FrameSave is a frame written to disk and waiting for its metadata row.
type FrameSave struct {
	Path      string
	Index     int
	Timestamp time.Time
}

// RegionSave is a region crop tagged with the frame it was cut from.
type RegionSave struct {
	Path      string
	Box       BoundingBox
	FramePath string
	Timestamp time.Time
}

// Visit is the open-visit aggregate. It is owned by the session manager
// until close, after which only its snapshot travels further.
type Visit struct {
	ID            int64
	StartTime     time.Time
	EndTime       *time.Time
	LastSeenTime  time.Time
	LastSeenFrame int
	StartFrame    int
	LastBox       *BoundingBox
	Dir           string
	ClipPath      string

	FrameQueue  []FrameSave
	RegionQueue []RegionSave
}

// NewVisit starts a visit at the given frame.
func NewVisit(id int64, start time.Time, frameIndex int) *Visit {
	return &Visit{
		ID:            id,
		StartTime:     start,
		LastSeenTime:  start,
		LastSeenFrame: frameIndex,
		StartFrame:    frameIndex,
	}
}

// Seen moves the last-seen marker forward. Older timestamps are ignored so
// last-seen never goes backwards.
func (v *Visit) Seen(at time.Time, frameIndex int) {
	if at.After(v.LastSeenTime) {
		v.LastSeenTime = at
	}
	if frameIndex > v.LastSeenFrame {
		v.LastSeenFrame = frameIndex
	}
}

// Close sets the end time once. It reports false when the visit was already closed.
func (v *Visit) Close(end time.Time) bool {
	if v.EndTime != nil {
		return false
	}
	v.EndTime = &end
	return true
}

// Snapshot copies the visit's queues by value and clears them on the visit.
func (v *Visit) Snapshot() VisitSnapshot {
	snap := VisitSnapshot{
		VisitID:       v.ID,
		StartTime:     v.StartTime,
		LastSeenTime:  v.LastSeenTime,
		StartFrame:    v.StartFrame,
		LastSeenFrame: v.LastSeenFrame,
		ClipPath:      v.ClipPath,
		Frames:        append([]FrameSave(nil), v.FrameQueue...),
		Regions:       append([]RegionSave(nil), v.RegionQueue...),
	}
	if v.EndTime != nil {
		snap.EndTime = *v.EndTime
	}
	v.FrameQueue = nil
	v.RegionQueue = nil
	return snap
}

// VisitSnapshot is the immutable hand-off from the live loop to background work.
type VisitSnapshot struct {
	VisitID       int64
	StartTime     time.Time
	EndTime       time.Time
	LastSeenTime  time.Time
	StartFrame    int
	LastSeenFrame int
	ClipPath      string
	FPS           float64
	Frames        []FrameSave
	Regions       []RegionSave
}
