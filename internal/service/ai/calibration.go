package ai

import (
	"fmt"

	"gocv.io/x/gocv"

	"possumtracker/internal/config"
	"possumtracker/internal/service/stats"
)

// FitHomography solves the perspective transform taking the four image
// points onto the four real-world points.
func FitHomography(img, real config.Quad) (stats.Homography, error) {
	src := gocv.NewPoint2fVectorFromPoints(points(img))
	defer src.Close()
	dst := gocv.NewPoint2fVectorFromPoints(points(real))
	defer dst.Close()

	m := gocv.GetPerspectiveTransform2f(src, dst)
	defer m.Close()
	if m.Empty() || m.Rows() != 3 || m.Cols() != 3 {
		return stats.Homography{}, fmt.Errorf("degenerate calibration quad %v", img)
	}

	var h stats.Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r][c] = m.GetDoubleAt(r, c)
		}
	}
	return h, nil
}

// Calibrate builds the two-zone calibration used by the statistics engine.
func Calibrate(cfg config.ZonesConfig) (stats.Calibration, error) {
	left, err := FitHomography(cfg.LeftImage, cfg.LeftReal)
	if err != nil {
		return stats.Calibration{}, fmt.Errorf("left zone: %w", err)
	}
	right, err := FitHomography(cfg.RightImage, cfg.RightReal)
	if err != nil {
		return stats.Calibration{}, fmt.Errorf("right zone: %w", err)
	}

	return stats.Calibration{
		SplitX:       cfg.SplitX,
		NoiseFloorPx: cfg.NoiseFloorPx,
		Left:         stats.Zone{Name: "left", Transform: left, PixelToCM: cfg.LeftPixelToCM},
		Right:        stats.Zone{Name: "right", Transform: right, PixelToCM: cfg.RightPixelToCM},
	}, nil
}

func points(q config.Quad) []gocv.Point2f {
	out := make([]gocv.Point2f, len(q))
	for i, p := range q {
		out[i] = gocv.Point2f{X: float32(p[0]), Y: float32(p[1])}
	}
	return out
}
