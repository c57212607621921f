package handler

import (
	"context"
	"net/http"

	"possumtracker/internal/logger"
)

// Readiness reports whether the database answers.
type Readiness interface {
	Ready(ctx context.Context) error
}

// HealthzHandler answers as long as the process serves HTTP.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ReadyzHandler returns 503 while the database is unreachable.
func ReadyzHandler(db Readiness, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ready(r.Context()); err != nil {
			logger.Warning("Database not ready: %v", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}
