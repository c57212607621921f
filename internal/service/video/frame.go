// Package video wraps OpenCV capture and encoding: the camera stream, the
// per-visit clip and the snapshot files.
package video

import (
	"time"

	"gocv.io/x/gocv"
)

// Frame is one captured image with its position in the stream.
type Frame struct {
	mat   gocv.Mat
	index int
	at    time.Time
}

func (f *Frame) Index() int       { return f.index }
func (f *Frame) Time() time.Time  { return f.at }
func (f *Frame) Size() (int, int) { return f.mat.Cols(), f.mat.Rows() }
func (f *Frame) Mat() gocv.Mat    { return f.mat }

// Close releases the pixels.
func (f *Frame) Close() {
	f.mat.Close()
}
