// Package trajectory reduces a visit's stored regions to one point per timestamp.
package trajectory

import (
	"math"
	"sort"

	"possumtracker/internal/model"
)

// Sort orders events by timestamp, keeping input order (region id order) for equal timestamps.
func Sort(events []model.DetectionEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

// Filter returns exactly one canonical point per distinct timestamp.
// Events must already be ordered by timestamp.
//
// A group of events sharing a timestamp is reduced to its first member when
// there is no previous canonical point, otherwise to the member whose
// horizontal center is nearest the previous point's. Ties keep the earlier member.
func Filter(events []model.DetectionEvent) []model.DetectionEvent {
	if len(events) == 0 {
		return nil
	}

	out := make([]model.DetectionEvent, 0, len(events))
	var prev *model.DetectionEvent

	for i := 0; i < len(events); {
		j := i + 1
		for j < len(events) && events[j].Timestamp.Equal(events[i].Timestamp) {
			j++
		}
		chosen := pick(events[i:j], prev)
		out = append(out, chosen)
		prev = &out[len(out)-1]
		i = j
	}

	return out
}

func pick(group []model.DetectionEvent, prev *model.DetectionEvent) model.DetectionEvent {
	if len(group) == 1 || prev == nil {
		return group[0]
	}

	best := 0
	bestDx := math.Inf(1)
	for i, ev := range group {
		if dx := math.Abs(ev.CenterX - prev.CenterX); dx < bestDx {
			bestDx = dx
			best = i
		}
	}
	return group[best]
}

// Nearest returns the index of the box whose horizontal center is closest to
// ref, or 0 when ref is nil. boxes must be non-empty.
func Nearest(boxes []model.BoundingBox, ref *model.BoundingBox) int {
	if ref == nil {
		return 0
	}
	best := 0
	bestDx := math.Inf(1)
	for i, b := range boxes {
		if dx := math.Abs(b.CenterX() - ref.CenterX()); dx < bestDx {
			bestDx = dx
			best = i
		}
	}
	return best
}
