package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for descriptor resolution. A nil
// or disabled Metrics is a no-op, so callers never need to guard their
// observation calls.
type Metrics struct {
	config MetricsConfig

	resolutionsStarted   prometheus.Counter
	resolutionsCompleted *prometheus.CounterVec
	resolutionDuration   *prometheus.HistogramVec

	snapshotFetches      *prometheus.CounterVec
	snapshotFetchSeconds prometheus.Histogram

	resolveErrors *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		resolutionsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_started_total",
				Help:      "Total number of full descriptor resolutions started",
			},
		),
		resolutionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_completed_total",
				Help:      "Total number of full descriptor resolutions completed",
			},
			[]string{"status"},
		),
		resolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_duration_seconds",
				Help:      "Duration of full descriptor resolution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		snapshotFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_fetches_total",
				Help:      "Total number of snapshot imports",
			},
			[]string{"outcome"},
		),
		snapshotFetchSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_fetch_duration_seconds",
				Help:      "Duration of snapshot fetches in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		resolveErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolve_errors_total",
				Help:      "Total number of resolution failures by kind",
			},
			[]string{"kind"},
		),
	}

	collectors := []prometheus.Collector{
		m.resolutionsStarted,
		m.resolutionsCompleted,
		m.resolutionDuration,
		m.snapshotFetches,
		m.snapshotFetchSeconds,
		m.resolveErrors,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.config.Enabled
}

// ObserveResolutionStarted records the start of a full resolution.
func (m *Metrics) ObserveResolutionStarted() {
	if !m.enabled() {
		return
	}
	m.resolutionsStarted.Inc()
}

// ObserveResolutionCompleted records the outcome of a full resolution.
func (m *Metrics) ObserveResolutionCompleted(success bool, duration time.Duration) {
	if !m.enabled() {
		return
	}
	status := "succeeded"
	if !success {
		status = "failed"
	}
	m.resolutionsCompleted.WithLabelValues(status).Inc()
	m.resolutionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveSnapshotFetch records a snapshot import. outcome is one of
// "fetched", "cached", or "failed".
func (m *Metrics) ObserveSnapshotFetch(outcome string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.snapshotFetches.WithLabelValues(outcome).Inc()
	m.snapshotFetchSeconds.Observe(duration.Seconds())
}

// ObserveResolveError records a classified resolution failure.
func (m *Metrics) ObserveResolveError(kind string) {
	if !m.enabled() {
		return
	}
	m.resolveErrors.WithLabelValues(kind).Inc()
}

// Handler returns an HTTP handler exposing the metrics, or nil if
// metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer serves the metrics endpoint on the configured
// listen address. It returns immediately; the server runs until the
// process exits.
func (m *Metrics) StartMetricsServer() error {
	if !m.enabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	go func() {
		// The metrics server lives for the whole process; errors here
		// are not fatal to resolution.
		_ = http.ListenAndServe(m.config.ListenAddr, mux)
	}()

	return nil
}
