package ai

import (
	"possumtracker/internal/model"
	"possumtracker/internal/service/session"
)

// Vision chains motion detection and classification for the capture loop.
type Vision struct {
	Motion     *MotionDetector
	Classifier *Classifier
}

// Analyze returns the motion boxes of f and the ones classified as possums.
// A classifier error fails the whole frame; motion is still reported.
func (v *Vision) Analyze(f session.Frame) (motion, positives []model.BoundingBox, err error) {
	mf, ok := f.(matFrame)
	if !ok {
		return nil, nil, ErrNoPixels
	}
	mat := mf.Mat()

	motion = v.Motion.Detect(mat)
	if len(motion) == 0 {
		return nil, nil, nil
	}
	positives, err = v.Classifier.Filter(mat, motion)
	return motion, positives, err
}

// Preview renders the analysis on f for live viewers.
func (v *Vision) Preview(f session.Frame, positives, motion []model.BoundingBox) ([]byte, error) {
	mf, ok := f.(matFrame)
	if !ok {
		return nil, ErrNoPixels
	}
	return Preview(mf.Mat(), positives, motion)
}
