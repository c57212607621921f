package ai

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"possumtracker/internal/logger"
	"possumtracker/internal/model"
	"possumtracker/internal/service/session"
)

const (
	inputSize     = 224
	possumClassID = 1
)

var (
	imagenetMean = gocv.NewScalar(0.485, 0.456, 0.406, 0)
	imagenetStd  = gocv.NewScalar(0.229, 0.224, 0.225, 0)
)

// ErrNoPixels is returned for frames that carry no OpenCV image.
var ErrNoPixels = errors.New("frame has no pixels")

// matFrame is a session frame backed by an OpenCV image.
type matFrame interface {
	Mat() gocv.Mat
}

// Classifier runs the two-class region network. Class 1 is the possum.
type Classifier struct {
	net    gocv.Net
	mu     sync.Mutex
	logger *logger.Logger
}

// NewClassifier loads an ONNX model for CPU inference.
func NewClassifier(modelPath string, log *logger.Logger) (*Classifier, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load classifier from %s", modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	log.Info("Classifier loaded from %s", modelPath)
	return &Classifier{net: net, logger: log}, nil
}

// Filter classifies every box and returns the positive ones. Any failure
// fails the whole frame.
func (c *Classifier) Filter(frame gocv.Mat, boxes []model.BoundingBox) ([]model.BoundingBox, error) {
	var positives []model.BoundingBox
	for _, box := range boxes {
		ok, err := c.Classify(frame, box)
		if err != nil {
			return nil, err
		}
		if ok {
			positives = append(positives, box)
		}
	}
	return positives, nil
}

// Classify reports whether the region of frame inside box is a possum.
func (c *Classifier) Classify(frame gocv.Mat, box model.BoundingBox) (bool, error) {
	box = box.Clamp(frame.Cols(), frame.Rows())
	if box.Empty() {
		return false, fmt.Errorf("empty region %+v", box)
	}

	roi := frame.Region(image.Rect(box.X1, box.Y1, box.X2, box.Y2))
	defer roi.Close()

	input, err := normalize(roi)
	if err != nil {
		return false, err
	}
	defer input.Close()

	blob := gocv.BlobFromImage(input, 1.0, image.Pt(inputSize, inputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.net.SetInput(blob, "")
	out := c.net.Forward("")
	defer out.Close()

	if out.Total() < 2 {
		return false, fmt.Errorf("unexpected classifier output size %d", out.Total())
	}
	scores := out.Reshape(1, 1)
	defer scores.Close()

	return scores.GetFloatAt(0, possumClassID) > scores.GetFloatAt(0, 0), nil
}

// Probe classifies a box of a captured frame while no motion is reported.
func (c *Classifier) Probe(f session.Frame, box model.BoundingBox) (bool, error) {
	mf, ok := f.(matFrame)
	if !ok {
		return false, ErrNoPixels
	}
	return c.Classify(mf.Mat(), box)
}

// Close releases the network.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.net.Close()
}

// normalize letterboxes roi onto a black inputSize square, converts it to RGB
// and applies ImageNet mean and standard deviation.
func normalize(roi gocv.Mat) (gocv.Mat, error) {
	w, h := roi.Cols(), roi.Rows()
	scale := float64(inputSize) / float64(max(w, h))
	newW, newH := max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(roi, &resized, image.Pt(newW, newH), 0, 0, gocv.InterpolationLinear)

	square := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), inputSize, inputSize, gocv.MatTypeCV8UC3)
	defer square.Close()
	left, top := (inputSize-newW)/2, (inputSize-newH)/2
	content := square.Region(image.Rect(left, top, left+newW, top+newH))
	resized.CopyTo(&content)
	content.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	if err := gocv.CvtColor(square, &rgb, gocv.ColorBGRToRGB); err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert region to RGB: %v", err)
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	rgb.ConvertToWithParams(&scaled, gocv.MatTypeCV32FC3, 1.0/255, 0)

	mean := gocv.NewMatWithSizeFromScalar(imagenetMean, inputSize, inputSize, gocv.MatTypeCV32FC3)
	defer mean.Close()
	std := gocv.NewMatWithSizeFromScalar(imagenetStd, inputSize, inputSize, gocv.MatTypeCV32FC3)
	defer std.Close()

	centered := gocv.NewMat()
	defer centered.Close()
	gocv.Subtract(scaled, mean, &centered)

	out := gocv.NewMat()
	gocv.Divide(centered, std, &out)
	return out, nil
}
