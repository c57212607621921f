package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the tracker's counters.
type Metrics struct {
	// Capture loop
	FramesRead         atomic.Uint64
	FramesProcessed    atomic.Uint64
	ReadErrors         atomic.Uint64
	ClassifierFailures atomic.Uint64
	SecondaryProbes    atomic.Uint64

	// Visits
	VisitsOpened   atomic.Uint64
	VisitsClosed   atomic.Uint64
	TimeoutCloses  atomic.Uint64
	NoMotionCloses atomic.Uint64

	// Background pipeline
	UploadQueueDepth atomic.Int64
	VisitsFinalized  atomic.Uint64
	UploadFailures   atomic.Uint64
	StatsFailures    atomic.Uint64
	RegionsUploaded  atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	counters := []struct {
		name string
		help string
		fn   func() float64
	}{
		{"possum_frames_read_total", "Frames read from the camera stream", func() float64 { return float64(m.FramesRead.Load()) }},
		{"possum_frames_processed_total", "Frames run through motion detection and classification", func() float64 { return float64(m.FramesProcessed.Load()) }},
		{"possum_read_errors_total", "Failed frame reads", func() float64 { return float64(m.ReadErrors.Load()) }},
		{"possum_classifier_failures_total", "Classifier invocations that failed and counted as negative", func() float64 { return float64(m.ClassifierFailures.Load()) }},
		{"possum_secondary_probes_total", "Direct probes of the last known box while motion was absent", func() float64 { return float64(m.SecondaryProbes.Load()) }},
		{"possum_visits_opened_total", "Visits opened", func() float64 { return float64(m.VisitsOpened.Load()) }},
		{"possum_visits_closed_total", "Visits closed", func() float64 { return float64(m.VisitsClosed.Load()) }},
		{"possum_visits_timeout_closed_total", "Visits closed by the idle timeout", func() float64 { return float64(m.TimeoutCloses.Load()) }},
		{"possum_visits_no_motion_closed_total", "Visits closed by the no-motion probe window", func() float64 { return float64(m.NoMotionCloses.Load()) }},
		{"possum_upload_queue_depth", "Visit snapshots waiting for a worker", func() float64 { return float64(m.UploadQueueDepth.Load()) }},
		{"possum_visits_finalized_total", "Visit snapshots fully processed in the background", func() float64 { return float64(m.VisitsFinalized.Load()) }},
		{"possum_upload_failures_total", "Failed storage or persistence steps", func() float64 { return float64(m.UploadFailures.Load()) }},
		{"possum_statistics_failures_total", "Failed statistics computations", func() float64 { return float64(m.StatsFailures.Load()) }},
		{"possum_regions_uploaded_total", "Region images uploaded", func() float64 { return float64(m.RegionsUploaded.Load()) }},
	}

	for _, c := range counters {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: c.name, Help: c.help},
			c.fn,
		))
	}
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
