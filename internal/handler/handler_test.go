package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"possumtracker/internal/config"
	"possumtracker/internal/dto"
	"possumtracker/internal/logger"
	"possumtracker/internal/model"
	"possumtracker/internal/repository"
)

// ========================================
// Fakes
// ========================================

type fakeDashboard struct {
	summary  *dto.DashboardSummary
	err      error
	from, to time.Time
}

func (d *fakeDashboard) Summary(ctx context.Context) (*dto.DashboardSummary, error) {
	return d.summary, d.err
}

func (d *fakeDashboard) VisitsPerNight(ctx context.Context, from, to time.Time) ([]dto.NightCount, error) {
	d.from, d.to = from, to
	return nil, d.err
}

type fakeVisits struct {
	records []model.VisitRecord
	limit   int
	night   string
	err     error
}

func (v *fakeVisits) ListRecentVisits(ctx context.Context, limit int) ([]model.VisitRecord, error) {
	v.limit = limit
	return v.records, nil
}

func (v *fakeVisits) ListVisitsByNight(ctx context.Context, nightDate string) ([]model.VisitRecord, error) {
	v.night = nightDate
	return v.records, v.err
}

type fakeStats map[int64]*model.VisitStatistics

func (s fakeStats) GetStatistics(ctx context.Context, visitID int64) (*model.VisitStatistics, error) {
	if st, ok := s[visitID]; ok {
		return st, nil
	}
	return nil, repository.ErrNotFound
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// ========================================
// Dashboard Tests
// ========================================

func TestDashboardHandler(t *testing.T) {
	dash := &fakeDashboard{summary: &dto.DashboardSummary{TotalVisits: 7}}
	rec := get(DashboardHandler(dash, logger.NewNop()), "/api/dashboard")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var got dto.DashboardSummary
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if got.TotalVisits != 7 {
		t.Errorf("Expected 7 visits, got %d", got.TotalVisits)
	}

	dash.err = errors.New("locked")
	if rec := get(DashboardHandler(dash, logger.NewNop()), "/api/dashboard"); rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

func TestVisitsPerNightHandler(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"explicit range", "?start=2025-03-01&end=2025-03-07", http.StatusOK},
		{"default range", "", http.StatusOK},
		{"bad start", "?start=03/01/2025", http.StatusBadRequest},
		{"bad end", "?start=2025-03-01&end=tomorrow", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dash := &fakeDashboard{}
			rec := get(VisitsPerNightHandler(dash, logger.NewNop()), "/api/visits"+tt.query)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusOK && strings.TrimSpace(rec.Body.String()) != "[]" {
				t.Errorf("Expected an empty list, got %s", rec.Body.String())
			}
		})
	}
}

func TestVisitsPerNightHandler_PassesRange(t *testing.T) {
	dash := &fakeDashboard{}
	get(VisitsPerNightHandler(dash, logger.NewNop()), "/api/visits?start=2025-03-01&end=2025-03-07")

	if dash.from.Format("2006-01-02") != "2025-03-01" || dash.to.Format("2006-01-02") != "2025-03-07" {
		t.Errorf("Unexpected range %v..%v", dash.from, dash.to)
	}
}

// ========================================
// Visit Tests
// ========================================

func TestRecentVisitsHandler(t *testing.T) {
	dur := 42.5
	visits := &fakeVisits{records: []model.VisitRecord{{
		ID:                3,
		StartTime:         time.Date(2025, 3, 3, 22, 15, 0, 0, time.UTC),
		NightDate:         "2025-03-03",
		DurationSeconds:   &dur,
		RepresentativeURL: "gs://bucket/visits/visit_3/rois/roi_000010_000.jpg",
	}}}

	rec := get(RecentVisitsHandler(visits, logger.NewNop()), "/api/visits/recent?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if visits.limit != 5 {
		t.Errorf("Expected limit 5, got %d", visits.limit)
	}

	var got []map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(got) != 1 || got[0]["date"] != "03-03-2025" || got[0]["time_of_day"] != "22:15" || got[0]["duration_seconds"] != 42.5 {
		t.Errorf("Unexpected visit payload: %v", got)
	}
}

func TestRecentVisitsHandler_LimitBounds(t *testing.T) {
	for _, q := range []string{"?limit=0", "?limit=5000", "?limit=abc", ""} {
		visits := &fakeVisits{}
		get(RecentVisitsHandler(visits, logger.NewNop()), "/api/visits/recent"+q)
		if visits.limit != defaultRecentLimit {
			t.Errorf("%q: expected default limit, got %d", q, visits.limit)
		}
	}
}

func TestNightVisitsHandler(t *testing.T) {
	regionID := int64(17)
	visits := &fakeVisits{records: []model.VisitRecord{{
		ID:                     8,
		StartTime:              time.Date(2025, 3, 4, 1, 30, 0, 0, time.UTC),
		NightDate:              "2025-03-03",
		VideoURL:               "gs://bucket/visits/visit_8/visit.mp4",
		RepresentativeRegionID: &regionID,
		RepresentativeURL:      "gs://bucket/visits/visit_8/rois/roi_000040_000.jpg",
	}}}

	rec := get(NightVisitsHandler(visits, logger.NewNop()), "/api/visits/night?date=2025-03-03")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if visits.night != "2025-03-03" {
		t.Errorf("Expected night 2025-03-03, got %q", visits.night)
	}

	var got []map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(got) != 1 || got[0]["video_url"] != "gs://bucket/visits/visit_8/visit.mp4" ||
		got[0]["representative_region_id"] != float64(17) ||
		got[0]["representative_url"] != "gs://bucket/visits/visit_8/rois/roi_000040_000.jpg" {
		t.Errorf("Unexpected night payload: %v", got)
	}
}

func TestNightVisitsHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{"missing date", "/api/visits/night", nil, http.StatusBadRequest},
		{"bad date", "/api/visits/night?date=03-03-2025", nil, http.StatusBadRequest},
		{"store failure", "/api/visits/night?date=2025-03-03", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visits := &fakeVisits{err: tt.err}
			if rec := get(NightVisitsHandler(visits, logger.NewNop()), tt.target); rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestNightVisitsHandler_EmptyNight(t *testing.T) {
	rec := get(NightVisitsHandler(&fakeVisits{}, logger.NewNop()), "/api/visits/night?date=2025-03-03")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("Expected an empty list, got %s", body)
	}
}

func TestVisitStatisticsHandler(t *testing.T) {
	stats := fakeStats{4: {VisitID: 4, TotalDistanceCM: 120.5}}
	h := VisitStatisticsHandler(stats, logger.NewNop())

	tests := []struct {
		target string
		want   int
	}{
		{"/api/visits/stats?id=4", http.StatusOK},
		{"/api/visits/stats?id=9", http.StatusNotFound},
		{"/api/visits/stats?id=x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := get(h, tt.target); rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.target, tt.want, rec.Code)
		}
	}
}

// ========================================
// Auth and Log Tests
// ========================================

func TestLoginHandler(t *testing.T) {
	h := LoginHandler(&config.Config{Password: "possum"}, logger.NewNop())

	tests := []struct {
		name     string
		password string
		want     int
		cookie   bool
	}{
		{"correct", "possum", http.StatusSeeOther, true},
		{"wrong", "opossum", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"password": {tt.password}}
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
			if got := len(rec.Result().Cookies()) > 0; got != tt.cookie {
				t.Errorf("Expected cookie %v, got %v", tt.cookie, got)
			}
		})
	}

	if rec := get(h, "/auth/login"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}
}

func TestShowLogsHandler(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "warning.log"), []byte("WARN something\n"), 0644); err != nil {
		t.Fatalf("Failed to write log: %v", err)
	}

	rec := get(ShowLogsHandler(dir, "warning"), "/logs/warning")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "WARN something") {
		t.Errorf("Expected the warning log, got %d %q", rec.Code, rec.Body.String())
	}

	if rec := get(ShowLogsHandler(dir, "error"), "/logs/error"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing log, got %d", rec.Code)
	}
}

// ========================================
// Health Tests
// ========================================

type fakeReadiness struct {
	err error
}

func (f fakeReadiness) Ready(ctx context.Context) error {
	return f.err
}

func TestReadyzHandler(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		body string
	}{
		{"database answers", nil, http.StatusOK, `{"status":"ready"}`},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(ReadyzHandler(fakeReadiness{err: tt.err}, logger.NewNop()), "/readyz")
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("Expected body to contain %q, got %q", tt.body, rec.Body.String())
			}
		})
	}
}

func TestHealthzHandler(t *testing.T) {
	rec := get(http.HandlerFunc(HealthzHandler), "/healthz")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Errorf("Unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}
