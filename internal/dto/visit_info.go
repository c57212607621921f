package dto

import (
	"encoding/json"
	"time"
)

// VisitInfo is one visit of the recent or per-night visit lists.
type VisitInfo struct {
	ID                     int64     `json:"id"`
	Start                  time.Time `json:"start"`
	NightDate              string    `json:"night_date"`
	DurationSeconds        float64   `json:"duration_seconds"`
	VideoURL               string    `json:"video_url,omitempty"`
	RepresentativeRegionID *int64    `json:"representative_region_id,omitempty"`
	RepresentativeURL      string    `json:"representative_url,omitempty"`
}

// MarshalJSON formats the start as a DD-MM-YYYY date and HH:MM time of day.
func (v VisitInfo) MarshalJSON() ([]byte, error) {
	type Alias VisitInfo
	return json.Marshal(&struct {
		Alias
		Start     string `json:"start"`
		Date      string `json:"date"`
		TimeOfDay string `json:"time_of_day"`
	}{
		Alias:     (Alias)(v),
		Start:     v.Start.Format(time.RFC3339),
		Date:      v.Start.Format("02-01-2006"),
		TimeOfDay: v.Start.Format("15:04"),
	})
}
