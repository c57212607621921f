package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"possumtracker/internal/dto"
	"possumtracker/internal/logger"
	"possumtracker/internal/model"
	"possumtracker/internal/repository"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
	defaultNightRange  = 7 * 24 * time.Hour
)

// Dashboard is the read side behind the dashboard endpoints.
type Dashboard interface {
	Summary(ctx context.Context) (*dto.DashboardSummary, error)
	VisitsPerNight(ctx context.Context, from, to time.Time) ([]dto.NightCount, error)
}

// VisitLister lists stored visits.
type VisitLister interface {
	ListRecentVisits(ctx context.Context, limit int) ([]model.VisitRecord, error)
	ListVisitsByNight(ctx context.Context, nightDate string) ([]model.VisitRecord, error)
}

// VisitStatistics reads stored movement statistics.
type VisitStatistics interface {
	GetStatistics(ctx context.Context, visitID int64) (*model.VisitStatistics, error)
}

// DashboardHandler returns the cached dashboard summary.
func DashboardHandler(dash Dashboard, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := dash.Summary(r.Context())
		if err != nil {
			logger.Error("Error building dashboard: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, summary)
	}
}

// VisitsPerNightHandler counts visits per night between start and end
// (YYYY-MM-DD, inclusive). Without a range it covers the last week.
func VisitsPerNightHandler(dash Dashboard, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, errFrom := parseDate(q.Get("start"))
		to, errTo := parseDate(q.Get("end"))
		if errFrom != nil || errTo != nil {
			http.Error(w, "Dates must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		if to.IsZero() {
			to = time.Now()
		}
		if from.IsZero() {
			from = to.Add(-defaultNightRange)
		}

		nights, err := dash.VisitsPerNight(r.Context(), from, to)
		if err != nil {
			logger.Error("Error counting visits per night: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if nights == nil {
			nights = []dto.NightCount{}
		}
		writeJSON(w, logger, nights)
	}
}

// RecentVisitsHandler lists the latest visits with their representative region.
func RecentVisitsHandler(visits VisitLister, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), defaultRecentLimit)
		if limit < 1 || limit > maxRecentLimit {
			limit = defaultRecentLimit
		}

		records, err := visits.ListRecentVisits(r.Context(), limit)
		if err != nil {
			logger.Error("Error listing visits: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, visitInfos(records))
	}
}

// NightVisitsHandler lists the visits of ?date=YYYY-MM-DD with their clip and
// representative region.
func NightVisitsHandler(visits VisitLister, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		night, err := parseDate(r.URL.Query().Get("date"))
		if err != nil || night.IsZero() {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		records, err := visits.ListVisitsByNight(r.Context(), night.Format("2006-01-02"))
		if err != nil {
			logger.Error("Error listing visits of %s: %v", night.Format("2006-01-02"), err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, visitInfos(records))
	}
}

func visitInfos(records []model.VisitRecord) []dto.VisitInfo {
	out := make([]dto.VisitInfo, 0, len(records))
	for _, v := range records {
		info := dto.VisitInfo{
			ID:                     v.ID,
			Start:                  v.StartTime,
			NightDate:              v.NightDate,
			VideoURL:               v.VideoURL,
			RepresentativeRegionID: v.RepresentativeRegionID,
			RepresentativeURL:      v.RepresentativeURL,
		}
		if v.DurationSeconds != nil {
			info.DurationSeconds = *v.DurationSeconds
		}
		out = append(out, info)
	}
	return out
}

// VisitStatisticsHandler returns the movement statistics of ?id=.
func VisitStatisticsHandler(stats VisitStatistics, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid visit id", http.StatusBadRequest)
			return
		}

		s, err := stats.GetStatistics(r.Context(), id)
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "No statistics for this visit", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("Error reading statistics of visit %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, s)
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// parseDate parses a YYYY-MM-DD date. Empty input is the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}
