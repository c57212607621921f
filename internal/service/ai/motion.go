// Package ai holds the OpenCV side of detection: background subtraction,
// the region classifier, ground-plane calibration and the live preview.
package ai

import (
	"image"
	"sync"

	"gocv.io/x/gocv"

	"possumtracker/internal/config"
	"possumtracker/internal/model"
)

// MotionDetector finds moving regions with a MOG2 background model.
type MotionDetector struct {
	cfg    config.MotionConfig
	mog2   gocv.BackgroundSubtractorMOG2
	kernel gocv.Mat
	mu     sync.Mutex
}

// NewMotionDetector creates a detector with an empty background model.
func NewMotionDetector(cfg config.MotionConfig) *MotionDetector {
	k := cfg.KernelSize
	if k < 1 {
		k = 1
	}
	return &MotionDetector{
		cfg:    cfg,
		mog2:   gocv.NewBackgroundSubtractorMOG2WithParams(cfg.History, cfg.VarThreshold, false),
		kernel: gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(k, k)),
	}
}

// Detect updates the background model with frame and returns the padded
// boxes of every moving region at least MinArea pixels large.
func (d *MotionDetector) Detect(frame gocv.Mat) []model.BoundingBox {
	if frame.Empty() {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	mask := gocv.NewMat()
	defer mask.Close()
	d.mog2.Apply(frame, &mask)
	if mask.Empty() {
		return nil
	}

	// open drops speckle, close fills holes inside the subject
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, d.kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, d.kernel)
	for i := 0; i < d.cfg.DilateIterations; i++ {
		gocv.Dilate(mask, &mask, d.kernel)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	width, height := frame.Cols(), frame.Rows()
	var boxes []model.BoundingBox
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) < d.cfg.MinArea {
			continue
		}
		r := gocv.BoundingRect(contour)
		box := model.BoundingBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}.
			Pad(d.cfg.PaddingRatio, width, height)
		if !box.Empty() {
			boxes = append(boxes, box)
		}
	}
	return boxes
}

// Close releases the background model.
func (d *MotionDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mog2.Close()
	d.kernel.Close()
}
