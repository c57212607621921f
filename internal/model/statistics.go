package model

import (
	"math"
	"time"
)

// VisitStatistics are the movement metrics of one closed visit, in seconds and centimeters.
type VisitStatistics struct {
	VisitID           int64     `json:"visit_id"`
	StoredDurationSec float64   `json:"visit_duration_sec_stored"`
	TotalTimeSec      float64   `json:"visit_duration_sec_calculated"`
	MovingTimeSec     float64   `json:"moving_time_sec"`
	IdleTimeSec       float64   `json:"idle_time_sec"`
	ActivityRatio     float64   `json:"activity_ratio"`
	TotalDistanceCM   float64   `json:"total_distance_cm"`
	AvgSpeedCMPerSec  float64   `json:"avg_speed_cm_per_sec"`
	PeakSpeedCMPerSec float64   `json:"max_speed_cm_per_sec"`
	CalculatedAt      time.Time `json:"calculated_at"`
}

// Rounded returns the statistics rounded the way they are stored:
// times and ratio to 3 decimals, distance and speeds to 2.
func (s VisitStatistics) Rounded() VisitStatistics {
	s.TotalTimeSec = round(s.TotalTimeSec, 3)
	s.MovingTimeSec = round(s.MovingTimeSec, 3)
	s.IdleTimeSec = round(s.IdleTimeSec, 3)
	s.ActivityRatio = round(s.ActivityRatio, 3)
	s.TotalDistanceCM = round(s.TotalDistanceCM, 2)
	s.AvgSpeedCMPerSec = round(s.AvgSpeedCMPerSec, 2)
	s.PeakSpeedCMPerSec = round(s.PeakSpeedCMPerSec, 2)
	return s
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
