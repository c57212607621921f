package stats

import "math"

// Homography is a 3x3 perspective transform from image pixels to ground-plane centimeters.
type Homography [3][3]float64

// Identity returns the transform that leaves points unchanged.
func Identity() Homography {
	return Homography{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Apply maps an image point through the transform.
func (h Homography) Apply(x, y float64) (float64, float64) {
	w := h[2][0]*x + h[2][1]*y + h[2][2]
	if w == 0 {
		return math.Inf(1), math.Inf(1)
	}
	return (h[0][0]*x + h[0][1]*y + h[0][2]) / w,
		(h[1][0]*x + h[1][1]*y + h[1][2]) / w
}

// Zone is one horizontal slice of the frame with its own ground calibration.
type Zone struct {
	Name      string
	Transform Homography
	// PixelToCM is the linear fallback scale used across zone borders.
	PixelToCM float64
}

// Calibration splits the frame into a left and right zone at SplitX.
type Calibration struct {
	SplitX       float64
	Left         Zone
	Right        Zone
	NoiseFloorPx float64
}

func (c Calibration) zoneOf(x float64) *Zone {
	if x < c.SplitX {
		return &c.Left
	}
	return &c.Right
}

// distance returns the ground distance in centimeters between two image
// points together with the pixel-to-cm coefficient used for size thresholds.
func (c Calibration) distance(x1, y1, x2, y2 float64) (float64, float64) {
	a := c.zoneOf(x1)
	b := c.zoneOf(x2)
	coef := (a.PixelToCM + b.PixelToCM) / 2

	if a.Name == b.Name {
		rx1, ry1 := a.Transform.Apply(x1, y1)
		rx2, ry2 := a.Transform.Apply(x2, y2)
		// points on the horizon line have no ground position
		if finite(rx1, ry1, rx2, ry2) {
			return math.Hypot(rx2-rx1, ry2-ry1), coef
		}
	}

	return math.Hypot(x2-x1, y2-y1) * coef, coef
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}
