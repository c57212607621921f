package model

import "time"

// BoundingBox is an axis-aligned box in frame pixels, corners (X1,Y1) inclusive and (X2,Y2) exclusive.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b BoundingBox) CenterX() float64 { return float64(b.X1+b.X2) / 2 }
func (b BoundingBox) CenterY() float64 { return float64(b.Y1+b.Y2) / 2 }
func (b BoundingBox) Width() int       { return b.X2 - b.X1 }
func (b BoundingBox) Height() int      { return b.Y2 - b.Y1 }

// Empty reports whether the box has no area.
func (b BoundingBox) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Clamp limits the box to a width x height frame.
func (b BoundingBox) Clamp(width, height int) BoundingBox {
	return BoundingBox{
		X1: clampInt(b.X1, 0, width),
		Y1: clampInt(b.Y1, 0, height),
		X2: clampInt(b.X2, 0, width),
		Y2: clampInt(b.Y2, 0, height),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DetectionEvent is one stored region reduced to the values the trajectory needs.
type DetectionEvent struct {
	RegionID  int64
	Timestamp time.Time
	Box       BoundingBox
	CenterX   float64
	CenterY   float64
	Width     float64
}

// NewDetectionEvent derives center and width from the box.
func NewDetectionEvent(regionID int64, ts time.Time, box BoundingBox) DetectionEvent {
	return DetectionEvent{
		RegionID:  regionID,
		Timestamp: ts,
		Box:       box,
		CenterX:   box.CenterX(),
		CenterY:   box.CenterY(),
		Width:     float64(box.Width()),
	}
}

// Pad grows the box by ratio of its own size on every side, clamped to a width x height frame.
func (b BoundingBox) Pad(ratio float64, width, height int) BoundingBox {
	padW := int(float64(b.Width()) * ratio)
	padH := int(float64(b.Height()) * ratio)
	return BoundingBox{X1: b.X1 - padW, Y1: b.Y1 - padH, X2: b.X2 + padW, Y2: b.Y2 + padH}.Clamp(width, height)
}
