package media

import (
	"fmt"
	"path/filepath"
	"time"
)

// VisitDir is the local directory of a visit: MEDIA_DIR/<YYYY-MM-DD>/visit_<id>.
func VisitDir(root string, visitID int64, start time.Time) string {
	return filepath.Join(root, start.Format("2006-01-02"), fmt.Sprintf("visit_%04d", visitID))
}

// FramePath is where a saved frame of the visit lives.
func FramePath(dir string, frameIndex int) string {
	return filepath.Join(dir, "frames", fmt.Sprintf("frame_%06d.jpg", frameIndex))
}

// RegionPath is where the n-th region cut from a frame lives.
func RegionPath(dir string, frameIndex, n int) string {
	return filepath.Join(dir, "rois", fmt.Sprintf("roi_%06d_%03d.jpg", frameIndex, n))
}

// TrimmedPath is the temporary file a clip is trimmed into before it replaces the original.
func TrimmedPath(clipPath string) string {
	ext := filepath.Ext(clipPath)
	return clipPath[:len(clipPath)-len(ext)] + "_trimmed" + ext
}
