package dto

import "time"

// Visit event kinds pushed to viewers and the broker.
const (
	VisitOpened    = "visit_opened"
	VisitClosed    = "visit_closed"
	VisitFinalized = "visit_finalized"
)

// VisitEvent announces a visit lifecycle change.
type VisitEvent struct {
	Type      string    `json:"type"`
	VisitID   int64     `json:"visit_id"`
	TaskID    string    `json:"task_id,omitempty"`
	At        time.Time `json:"at"`
	Regions   int       `json:"regions,omitempty"`
	VideoURL  string    `json:"video_url,omitempty"`
	EndReason string    `json:"end_reason,omitempty"`
}

// PreviewFrame is a live JPEG frame for connected viewers.
type PreviewFrame struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Image string `json:"image"`
}
