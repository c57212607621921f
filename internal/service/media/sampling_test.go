package media

import (
	"reflect"
	"testing"
)

// ========================================
// Region Sampling Tests
// ========================================

func TestSelectRegions(t *testing.T) {
	tests := []struct {
		n              int
		sampled        []int
		representative int
		ok             bool
	}{
		{0, nil, 0, false},
		{1, []int{0}, 0, true},
		{2, []int{0, 1}, 0, true},
		{4, []int{0, 1, 2, 3}, 1, true},
		{5, []int{0, 1, 2, 3, 4}, 2, true},
		{6, []int{0, 1, 3, 4, 5}, 2, true},
		{12, []int{0, 3, 6, 9, 11}, 5, true},
		{100, []int{0, 25, 50, 75, 99}, 49, true},
	}

	for _, tt := range tests {
		sampled, rep, ok := SelectRegions(tt.n)
		if ok != tt.ok || rep != tt.representative || !reflect.DeepEqual(sampled, tt.sampled) {
			t.Errorf("SelectRegions(%d) = %v, %d, %v; expected %v, %d, %v",
				tt.n, sampled, rep, ok, tt.sampled, tt.representative, tt.ok)
		}
	}
}

func TestKeepFrames(t *testing.T) {
	tests := []struct {
		name            string
		start, lastSeen int
		fps             float64
		expected        int
	}{
		{"trailing buffer", 100, 400, 25, 375},
		{"last before start", 100, 50, 25, 75},
		{"fractional fps", 0, 10, 12.5, 47},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeepFrames(tt.start, tt.lastSeen, tt.fps, 3); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestObjectKeys(t *testing.T) {
	if got := ClipKey(7); got != "visits/visit_7/visit.mp4" {
		t.Errorf("Unexpected clip key %s", got)
	}
	if got := RegionKey(7, "roi_000015_000.jpg"); got != "visits/visit_7/rois/roi_000015_000.jpg" {
		t.Errorf("Unexpected region key %s", got)
	}
}
