package model

import "time"

// VisitRecord is a stored visit row.
type VisitRecord struct {
	ID                     int64      `json:"id"`
	StartTime              time.Time  `json:"start_time"`
	EndTime                *time.Time `json:"end_time,omitempty"`
	NightDate              string     `json:"night_date"`
	DurationSeconds        *float64   `json:"duration_seconds,omitempty"`
	VideoURL               string     `json:"video_url,omitempty"`
	RepresentativeRegionID *int64     `json:"representative_region_id,omitempty"`
	RepresentativeURL      string     `json:"representative_url,omitempty"`
}

// FrameRecord is a stored frame row.
type FrameRecord struct {
	ID        int64     `json:"id"`
	VisitID   int64     `json:"visit_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RegionRecord is a stored region row.
type RegionRecord struct {
	ID        int64       `json:"id"`
	FrameID   int64       `json:"frame_id"`
	Box       BoundingBox `json:"box"`
	Timestamp time.Time   `json:"timestamp"`
	URL       string      `json:"url,omitempty"`
}

// NightDate returns the night a visit belongs to: visits before noon count
// towards the previous evening.
func NightDate(start time.Time) string {
	return start.Add(-12 * time.Hour).Format("2006-01-02")
}
