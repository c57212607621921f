package model

import (
	"testing"
	"time"
)

// ========================================
// BoundingBox Tests
// ========================================

func TestBoundingBox_Pad(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		want BoundingBox
	}{
		{"interior", BoundingBox{X1: 100, Y1: 100, X2: 200, Y2: 150}, BoundingBox{X1: 70, Y1: 85, X2: 230, Y2: 165}},
		{"clamped at origin", BoundingBox{X1: 5, Y1: 5, X2: 105, Y2: 105}, BoundingBox{X1: 0, Y1: 0, X2: 135, Y2: 135}},
		{"clamped at far edge", BoundingBox{X1: 600, Y1: 400, X2: 640, Y2: 480}, BoundingBox{X1: 588, Y1: 376, X2: 640, Y2: 480}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Pad(0.3, 640, 480); got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestBoundingBox_ClampAndEmpty(t *testing.T) {
	b := BoundingBox{X1: -10, Y1: 470, X2: 20, Y2: 500}.Clamp(640, 480)
	if b != (BoundingBox{X1: 0, Y1: 470, X2: 20, Y2: 480}) {
		t.Errorf("Unexpected clamp %+v", b)
	}
	if b.Empty() {
		t.Error("Clamped box should keep its area")
	}
	if !(BoundingBox{X1: 700, Y1: 0, X2: 800, Y2: 10}).Clamp(640, 480).Empty() {
		t.Error("Box outside the frame should clamp to empty")
	}
}

func TestNightDate(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{1, "2025-03-03"},
		{11, "2025-03-03"},
		{12, "2025-03-04"},
		{23, "2025-03-04"},
	}
	for _, tt := range tests {
		start := time.Date(2025, 3, 4, tt.hour, 0, 0, 0, time.UTC)
		if got := NightDate(start); got != tt.want {
			t.Errorf("Hour %d: expected %s, got %s", tt.hour, tt.want, got)
		}
	}
}
