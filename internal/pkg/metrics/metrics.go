// Package metrics exposes the draw engine's prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DrawMetrics aggregates the counters for round lifecycle and notification
// delivery. All methods are nil-safe so services can run without metrics in
// tests.
type DrawMetrics struct {
	registry        *prometheus.Registry
	roundsStarted   prometheus.Counter
	roundsCommitted prometheus.Counter
	roundsAborted   prometheus.Counter
	notifyFailures  prometheus.Counter
	windowDuration  prometheus.Histogram
}

// New creates a collector with its own registry
func New() *DrawMetrics {
	registry := prometheus.NewRegistry()
	return &DrawMetrics{
		registry: registry,
		roundsStarted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "tontine_rounds_started_total",
			Help: "Total number of rounds started",
		}),
		roundsCommitted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "tontine_rounds_committed_total",
			Help: "Total number of draw records committed to the ledger",
		}),
		roundsAborted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "tontine_rounds_aborted_total",
			Help: "Total number of rounds aborted before commit",
		}),
		notifyFailures: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "tontine_notify_failures_total",
			Help: "Total number of best-effort notification failures",
		}),
		windowDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "tontine_optin_window_duration_seconds",
			Help:    "Time from window open to close",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// Handler returns the /metrics HTTP handler for this registry
func (m *DrawMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *DrawMetrics) IncRoundsStarted() {
	if m != nil {
		m.roundsStarted.Inc()
	}
}

func (m *DrawMetrics) IncRoundsCommitted() {
	if m != nil {
		m.roundsCommitted.Inc()
	}
}

func (m *DrawMetrics) IncRoundsAborted() {
	if m != nil {
		m.roundsAborted.Inc()
	}
}

func (m *DrawMetrics) IncNotifyFailures() {
	if m != nil {
		m.notifyFailures.Inc()
	}
}

func (m *DrawMetrics) ObserveWindowDuration(seconds float64) {
	if m != nil {
		m.windowDuration.Observe(seconds)
	}
}
