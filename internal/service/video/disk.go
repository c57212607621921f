package video

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"possumtracker/internal/model"
	"possumtracker/internal/service/media"
	"possumtracker/internal/service/session"
)

// DiskStore writes visit frames and regions as JPEG files under root.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

// PrepareVisit creates the visit directory with its frames and rois folders.
func (d *DiskStore) PrepareVisit(visitID int64, start time.Time) (string, error) {
	dir := media.VisitDir(d.root, visitID, start)
	for _, sub := range []string{"frames", "rois"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return "", fmt.Errorf("failed to create visit directory: %w", err)
		}
	}
	return dir, nil
}

func (d *DiskStore) SaveFrame(dir string, f session.Frame) (string, error) {
	mf, ok := f.(*Frame)
	if !ok {
		return "", fmt.Errorf("frame %d has no pixels", f.Index())
	}
	path := media.FramePath(dir, f.Index())
	if !gocv.IMWrite(path, mf.mat) {
		return "", fmt.Errorf("failed to write %s", path)
	}
	return path, nil
}

func (d *DiskStore) SaveRegion(dir string, f session.Frame, n int, box model.BoundingBox) (string, error) {
	mf, ok := f.(*Frame)
	if !ok {
		return "", fmt.Errorf("frame %d has no pixels", f.Index())
	}
	box = box.Clamp(mf.mat.Cols(), mf.mat.Rows())
	if box.Empty() {
		return "", fmt.Errorf("region %d of frame %d is empty", n, f.Index())
	}

	roi := mf.mat.Region(image.Rect(box.X1, box.Y1, box.X2, box.Y2))
	defer roi.Close()

	path := media.RegionPath(dir, f.Index(), n)
	if !gocv.IMWrite(path, roi) {
		return "", fmt.Errorf("failed to write %s", path)
	}
	return path, nil
}
