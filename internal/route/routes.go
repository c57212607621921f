package route

import (
	"net/http"
	"os"
	"path/filepath"

	"possumtracker/internal/config"
	"possumtracker/internal/handler"
	"possumtracker/internal/logger"
	"possumtracker/internal/metrics"
	"possumtracker/internal/middleware"
	"possumtracker/internal/service/websocket"
)

// Deps are the services behind the HTTP surface.
type Deps struct {
	Dashboard handler.Dashboard
	Visits    handler.VisitLister
	Stats     handler.VisitStatistics
	DB        handler.Readiness
	Hub       *websocket.HubService
	Metrics   *metrics.Metrics
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(deps Deps, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// API endpoints
	mux.HandleFunc("/api/dashboard", handler.DashboardHandler(deps.Dashboard, logger))
	mux.HandleFunc("/api/visits", handler.VisitsPerNightHandler(deps.Dashboard, logger))
	mux.HandleFunc("/api/visits/recent", handler.RecentVisitsHandler(deps.Visits, logger))
	mux.HandleFunc("/api/visits/night", handler.NightVisitsHandler(deps.Visits, logger))
	mux.HandleFunc("/api/visits/stats", handler.VisitStatisticsHandler(deps.Stats, logger))
	if deps.Hub != nil {
		mux.HandleFunc("/api/visits/live", handler.LiveHandler(deps.Hub, logger))
	}
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}

	// Health checks
	mux.HandleFunc("/healthz", handler.HealthzHandler)
	if deps.DB != nil {
		mux.HandleFunc("/readyz", handler.ReadyzHandler(deps.DB, logger))
	}

	// Log endpoints
	for level := range handler.LogFiles {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(cfg.LogDirectory, level))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, level))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.AuthMiddleware(mux)
}
