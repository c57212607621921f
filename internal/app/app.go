package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"possumtracker/internal/config"
	"possumtracker/internal/dto"
	"possumtracker/internal/logger"
	"possumtracker/internal/metrics"
	"possumtracker/internal/repository/gateway"
	"possumtracker/internal/route"
	"possumtracker/internal/service/ai"
	"possumtracker/internal/service/dashboard"
	"possumtracker/internal/service/events"
	"possumtracker/internal/service/media"
	"possumtracker/internal/service/pipeline"
	"possumtracker/internal/service/session"
	"possumtracker/internal/service/stats"
	"possumtracker/internal/service/storage"
	"possumtracker/internal/service/video"
	"possumtracker/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	store      *gateway.Gateway
	objects    storage.ObjectStore
	hub        *websocket.HubService
	broker     *events.MQTTEmitter
	notifier   *events.Notifier
	dispatcher *media.Dispatcher
	source     *video.Source
	vision     *ai.Vision
	runner     *pipeline.Runner
	server     *http.Server
}

// NewApp wires every component. Anything it opened is released again on error.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	a := &App{config: cfg, logger: log, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if a.store, err = gateway.Open(ctx, cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if a.objects, err = storage.New(ctx, cfg.Storage, log); err != nil {
		return nil, fmt.Errorf("failed to open object storage: %w", err)
	}

	calibration, err := ai.Calibrate(cfg.Zones)
	if err != nil {
		return nil, fmt.Errorf("failed to calibrate zones: %w", err)
	}
	engine := stats.NewEngine(calibration, a.store.Stats, log, a.metrics)

	classifier, err := ai.NewClassifier(cfg.Capture.ModelPath, log)
	if err != nil {
		return nil, err
	}
	a.vision = &ai.Vision{Motion: ai.NewMotionDetector(cfg.Motion), Classifier: classifier}

	a.hub = websocket.NewHubService(log)
	var broker events.Publisher
	if cfg.Events.MQTTBroker != "" {
		a.broker = events.NewMQTTEmitter(cfg.Events, log)
		if err := a.broker.Connect(); err != nil {
			log.Warning("⚠️  MQTT unavailable, retrying in the background: %v", err)
		}
		broker = a.broker
	}
	var feeder events.Trigger
	if cfg.Events.FeederURL != "" {
		feeder = events.NewFeeder(cfg.Events.FeederURL)
	}
	a.notifier = events.NewNotifier(a.hub, broker, feeder, log)

	dash := dashboard.NewService(a.store.Dashboard, cfg.Dashboard, log)

	a.dispatcher = media.NewDispatcher(cfg.Upload, cfg.Session.TrailingSeconds, media.DispatcherDeps{
		Visits:    a.store.Visits,
		Store:     a.objects,
		Trimmer:   video.NewTrimmer(log),
		Stats:     engine,
		Announcer: finalizeAnnouncer{notifier: a.notifier, dashboard: dash},
	}, log, a.metrics)

	sessions := session.NewManager(cfg.Session, session.Deps{
		Visits:   a.store.Visits,
		Media:    video.NewDiskStore(cfg.MediaDirectory),
		Clip:     video.NewClipWriter(),
		Prober:   classifier,
		Handoff:  a.dispatcher,
		Notifier: a.notifier,
	}, log, a.metrics)

	if a.source, err = video.Open(ctx, cfg.Capture, log); err != nil {
		return nil, fmt.Errorf("failed to open camera: %w", err)
	}
	a.runner = pipeline.NewRunner(captureSource{a.source}, a.vision, sessions, a.hub, cfg.Capture.SkipFrames, log, a.metrics)

	router := route.SetupRoutes(route.Deps{
		Dashboard: dash,
		Visits:    a.store.Visits,
		Stats:     a.store.Stats,
		DB:        a.store,
		Hub:       a.hub,
		Metrics:   a.metrics,
	}, cfg, log)
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run serves until ctx is cancelled or the HTTP server fails, then shuts
// down in dependency order: capture, background finalizing, outbound events, storage.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(ctx)
		close(hubDone)
	}()

	captureDone := make(chan struct{})
	go func() {
		a.runner.Run(ctx)
		close(captureDone)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	a.logger.Info("🚀 Possum tracker listening on http://localhost:%d", a.config.Port)
	a.logger.Info("📁 Media: %s, database: %s, storage: %s", a.config.MediaDirectory, a.store.Driver, a.config.Storage.Backend)

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}
	cancel()

	a.logger.Info("🛑 Shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}

	<-captureDone
	a.dispatcher.Stop()
	a.notifier.Wait()
	<-hubDone

	a.close()
	return runErr
}

// close releases whatever NewApp managed to open.
func (a *App) close() {
	if a.source != nil {
		a.source.Close()
	}
	if a.vision != nil {
		a.vision.Motion.Close()
		a.vision.Classifier.Close()
	}
	if a.broker != nil {
		a.broker.Disconnect()
	}
	if a.objects != nil {
		if err := a.objects.Close(); err != nil {
			a.logger.Warning("Closing object storage: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warning("Closing database: %v", err)
		}
	}
	a.logger.Sync()
}

// captureSource hands video frames to the capture loop.
type captureSource struct {
	*video.Source
}

func (s captureSource) Next() (pipeline.Frame, error) {
	f, err := s.Source.Next()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// finalizeAnnouncer refreshes the dashboard once a visit is fully stored.
type finalizeAnnouncer struct {
	notifier  *events.Notifier
	dashboard *dashboard.Service
}

func (f finalizeAnnouncer) VisitFinalized(ev dto.VisitEvent) {
	f.dashboard.Invalidate()
	f.notifier.VisitFinalized(ev)
}
