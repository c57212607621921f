package ai

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"possumtracker/internal/model"
)

var (
	green = color.RGBA{G: 255}
	red   = color.RGBA{R: 255}
)

// Preview draws positive boxes in green and the remaining motion in red on
// a copy of frame and returns it JPEG-encoded.
func Preview(frame gocv.Mat, positives, motion []model.BoundingBox) ([]byte, error) {
	mat := frame.Clone()
	defer mat.Close()

	for _, box := range motion {
		if contains(positives, box) {
			continue
		}
		if err := draw(&mat, box, "motion", red); err != nil {
			return nil, err
		}
	}
	for _, box := range positives {
		if err := draw(&mat, box, "possum", green); err != nil {
			return nil, err
		}
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preview: %v", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

func draw(mat *gocv.Mat, box model.BoundingBox, label string, c color.RGBA) error {
	if err := gocv.Rectangle(mat, image.Rect(box.X1, box.Y1, box.X2, box.Y2), c, 2); err != nil {
		return fmt.Errorf("failed to draw rectangle: %v", err)
	}
	if err := gocv.PutText(mat, label, image.Pt(box.X1, box.Y1-5), gocv.FontHersheySimplex, 0.5, c, 1); err != nil {
		return fmt.Errorf("failed to draw text: %v", err)
	}
	return nil
}

func contains(boxes []model.BoundingBox, b model.BoundingBox) bool {
	for _, x := range boxes {
		if x == b {
			return true
		}
	}
	return false
}
