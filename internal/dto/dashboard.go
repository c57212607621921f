package dto

// HourCount is the number of visits that started in an hour of the day.
type HourCount struct {
	Hour   int `json:"hour"`
	Visits int `json:"visits"`
}

// NightCount is the number of visits in one night.
type NightCount struct {
	NightDate       string  `json:"night_date"`
	Visits          int     `json:"visits"`
	AverageDuration float64 `json:"average_duration_seconds"`
	Videos          int     `json:"videos"`
}

// DurationRanges are the histogram labels in display order.
var DurationRanges = []string{"0-10 sec", "10-30 sec", "30-60 sec", ">60 sec"}

// DurationBucket is one bar of the visit duration histogram.
type DurationBucket struct {
	Label  string `json:"range"`
	Visits int    `json:"visits"`
}

// ActivitySummary averages the stored movement statistics.
type ActivitySummary struct {
	Visits           int     `json:"visits"`
	AvgActivityRatio float64 `json:"avg_activity_ratio"`
	AvgDistanceCM    float64 `json:"avg_distance_cm"`
	AvgSpeedCMPerSec float64 `json:"avg_speed_cm_per_sec"`
	MaxSpeedCMPerSec float64 `json:"max_speed_cm_per_sec"`
}

// DashboardSummary is the cached dashboard payload.
type DashboardSummary struct {
	TotalVisits           int              `json:"total_visits"`
	AverageVisitsPerNight float64          `json:"average_visits_per_night"`
	AverageDuration       float64          `json:"average_duration_seconds"`
	MaxDuration           float64          `json:"max_duration_seconds"`
	MostPopularHour       *HourCount       `json:"most_popular_hour"`
	MaxVisitsPerNight     *NightCount      `json:"max_visits_per_night"`
	VisitsPerHour         []HourCount      `json:"visits_per_hour"`
	DurationHistogram     []DurationBucket `json:"duration_histogram"`
	Activity              *ActivitySummary `json:"activity"`
}
