package media

import (
	"path/filepath"
	"testing"
	"time"
)

// ========================================
// Layout Tests
// ========================================

func TestLayout_Paths(t *testing.T) {
	start := time.Date(2025, 3, 4, 1, 30, 0, 0, time.UTC)
	dir := VisitDir("/data/media", 12, start)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"visit dir", dir, filepath.Join("/data/media", "2025-03-04", "visit_0012")},
		{"frame", FramePath(dir, 345), filepath.Join(dir, "frames", "frame_000345.jpg")},
		{"region", RegionPath(dir, 345, 2), filepath.Join(dir, "rois", "roi_000345_002.jpg")},
		{"trimmed clip", TrimmedPath(filepath.Join(dir, "visit.mp4")), filepath.Join(dir, "visit_trimmed.mp4")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, tt.got)
			}
		})
	}
}
