package video

import (
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"possumtracker/internal/logger"
	"possumtracker/internal/service/media"
	"possumtracker/internal/service/session"
)

const codec = "mp4v"

// ClipWriter records the open visit's clip. Only one clip is open at a time.
type ClipWriter struct {
	mu     sync.Mutex
	writer *gocv.VideoWriter
	path   string
}

func NewClipWriter() *ClipWriter {
	return &ClipWriter{}
}

func (c *ClipWriter) Start(path string, fps float64, width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writer != nil {
		c.writer.Close()
	}
	w, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		c.writer = nil
		return fmt.Errorf("failed to open clip %s: %v", path, err)
	}
	c.writer, c.path = w, path
	return nil
}

func (c *ClipWriter) Write(f session.Frame) error {
	mf, ok := f.(*Frame)
	if !ok {
		return fmt.Errorf("frame %d has no pixels", f.Index())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer == nil {
		return fmt.Errorf("no clip open")
	}
	return c.writer.Write(mf.mat)
}

func (c *ClipWriter) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer == nil {
		return nil
	}
	err := c.writer.Close()
	c.writer = nil
	return err
}

// Trimmer rewrites a clip keeping only its first frames.
type Trimmer struct {
	logger *logger.Logger
}

func NewTrimmer(log *logger.Logger) *Trimmer {
	return &Trimmer{logger: log}
}

// Trim keeps the first keep frames of path, never more than the clip has,
// and replaces the original file.
func (t *Trimmer) Trim(path string, keep int, fps float64) error {
	in, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return fmt.Errorf("failed to open clip for trimming: %v", err)
	}
	defer in.Close()
	if !in.IsOpened() {
		return fmt.Errorf("failed to open clip for trimming: %s", path)
	}

	if total := int(in.Get(gocv.VideoCaptureFrameCount)); total > 0 && keep > total {
		keep = total
	}
	width := int(in.Get(gocv.VideoCaptureFrameWidth))
	height := int(in.Get(gocv.VideoCaptureFrameHeight))

	tmp := media.TrimmedPath(path)
	out, err := gocv.VideoWriterFile(tmp, codec, fps, width, height, true)
	if err != nil {
		return fmt.Errorf("failed to create trimmed clip: %v", err)
	}

	frame := gocv.NewMat()
	defer frame.Close()

	written := 0
	for written < keep && in.Read(&frame) && !frame.Empty() {
		if err := out.Write(frame); err != nil {
			out.Close()
			os.Remove(tmp)
			return fmt.Errorf("failed to write trimmed frame %d: %v", written, err)
		}
		written++
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize trimmed clip: %v", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace clip: %w", err)
	}
	t.logger.Info("Trimmed %s to %d frames", path, written)
	return nil
}
