package repository

import (
	"context"
	"errors"
	"time"

	"possumtracker/internal/dto"
	"possumtracker/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// VisitRepository is the persistence gateway used by the session manager and
// the upload pipeline. Every call commits independently.
type VisitRepository interface {
	// Create operations
	CreateVisit(ctx context.Context, start time.Time) (int64, error)
	InsertFrame(ctx context.Context, visitID int64, ts time.Time) (int64, error)
	InsertRegion(ctx context.Context, frameID int64, box model.BoundingBox, ts time.Time) (int64, error)

	// Update operations
	CloseVisit(ctx context.Context, visitID int64, end time.Time) error
	SetVideoURL(ctx context.Context, visitID int64, url string) error
	SetRegionURL(ctx context.Context, regionID int64, url string) error
	SetRepresentativeRegion(ctx context.Context, visitID int64, regionID *int64) error

	// Read operations
	GetVisit(ctx context.Context, visitID int64) (*model.VisitRecord, error)
	ListRecentVisits(ctx context.Context, limit int) ([]model.VisitRecord, error)
	ListVisitsByNight(ctx context.Context, nightDate string) ([]model.VisitRecord, error)
	ListClosedVisitIDs(ctx context.Context) ([]int64, error)
	GetRegions(ctx context.Context, visitID int64) ([]model.RegionRecord, error)
}

// StatisticsRepository stores and feeds the statistics engine.
type StatisticsRepository interface {
	// RegionTrack returns the visit's regions ordered by timestamp, then region id.
	RegionTrack(ctx context.Context, visitID int64) ([]model.DetectionEvent, error)
	VisitDuration(ctx context.Context, visitID int64) (float64, error)
	UpsertStatistics(ctx context.Context, stats model.VisitStatistics) error
	GetStatistics(ctx context.Context, visitID int64) (*model.VisitStatistics, error)
}

// DashboardRepository runs the read-side aggregate queries.
type DashboardRepository interface {
	TotalVisits(ctx context.Context) (int, error)
	AverageVisitsPerNight(ctx context.Context) (float64, error)
	AverageDuration(ctx context.Context) (float64, error)
	MaxDuration(ctx context.Context) (float64, error)
	MostPopularHour(ctx context.Context) (*dto.HourCount, error)
	MaxVisitsPerNight(ctx context.Context) (*dto.NightCount, error)
	VisitsPerHour(ctx context.Context) ([]dto.HourCount, error)
	DurationHistogram(ctx context.Context) ([]dto.DurationBucket, error)
	ActivitySummary(ctx context.Context) (*dto.ActivitySummary, error)
	VisitsPerNight(ctx context.Context, from, to time.Time) ([]dto.NightCount, error)
}
