package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"possumtracker/internal/config"
	"possumtracker/internal/logger"
)

// ErrReadFailed is returned when the stream yields no frame.
var ErrReadFailed = errors.New("failed to read frame")

// Source reads frames from the camera stream and reconnects when it drops.
type Source struct {
	cfg    config.CaptureConfig
	cap    *gocv.VideoCapture
	fps    float64
	next   int
	logger *logger.Logger
}

// Open connects to the stream, retrying once after ReconnectDelay.
func Open(ctx context.Context, cfg config.CaptureConfig, log *logger.Logger) (*Source, error) {
	s := &Source{cfg: cfg, logger: log}
	if err := s.connect(); err != nil {
		log.Warning("⚠️  Initial video capture failed, retrying: %v", err)
		if err := sleep(ctx, cfg.ReconnectDelay); err != nil {
			return nil, err
		}
		if err := s.connect(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Source) connect() error {
	vc, err := gocv.VideoCaptureFile(s.cfg.RTSPURL)
	if err != nil {
		return fmt.Errorf("failed to open stream: %v", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("stream did not open")
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	s.cap = vc
	s.fps = vc.Get(gocv.VideoCaptureFPS)
	if s.fps <= 0 {
		s.fps = s.cfg.DefaultFPS
	}
	s.logger.Info("🎬 Camera stream opened at %.1f fps", s.fps)
	return nil
}

// FPS is the stream frame rate, or DefaultFPS when the stream reports none.
func (s *Source) FPS() float64 {
	return s.fps
}

// Next reads the next frame. The caller owns the frame and must Close it.
// While the stream is down after a failed reconnect it returns ErrReadFailed.
func (s *Source) Next() (*Frame, error) {
	if s.cap == nil {
		return nil, fmt.Errorf("%w: stream not connected", ErrReadFailed)
	}
	mat := gocv.NewMat()
	if ok := s.cap.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrReadFailed
	}
	f := &Frame{mat: mat, index: s.next, at: time.Now()}
	s.next++
	return f, nil
}

// Reconnect waits ReconnectDelay and reopens the stream. Frame indices keep counting.
func (s *Source) Reconnect(ctx context.Context) error {
	if s.cap != nil {
		s.cap.Close()
		s.cap = nil
	}
	if err := sleep(ctx, s.cfg.ReconnectDelay); err != nil {
		return err
	}
	return s.connect()
}

func (s *Source) Close() {
	if s.cap != nil {
		s.cap.Close()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
