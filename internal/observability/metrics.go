package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// insight engine.
type Metrics struct {
	RequestsTotal      prometheus.Counter
	RequestDuration    prometheus.Histogram
	IncompleteData     prometheus.Counter
	ProfileFallbacks   prometheus.Counter
	EngineReady        prometheus.Gauge

	// Alert lifecycle metrics.
	AlertsFired      *prometheus.CounterVec // label: category
	AlertsSuppressed *prometheus.CounterVec // label: category
	StateErrors      prometheus.Counter
	StateConflicts   prometheus.Counter
	PublishErrors    prometheus.Counter

	// Measurement provider metrics.
	ProviderRequests *prometheus.CounterVec // labels: outcome={success,error}
	ProviderCache    *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.IncompleteData,
		m.ProfileFallbacks,
		m.EngineReady,
		m.AlertsFired,
		m.AlertsSuppressed,
		m.StateErrors,
		m.StateConflicts,
		m.PublishErrors,
		m.ProviderRequests,
		m.ProviderCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "requests_total",
			Help:      "Total insight requests evaluated.",
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "insight_engine",
			Name:      "request_duration_seconds",
			Help:      "Duration of a complete normalize-score-risk-alert cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		IncompleteData: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "incomplete_data_total",
			Help:      "Requests rejected because a required metric family was absent.",
		}),
		ProfileFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "profile_fallbacks_total",
			Help:      "Requests evaluated with an empty profile because the store failed.",
		}),
		EngineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "insight_engine",
			Name:      "ready",
			Help:      "1 once the engine has served at least one insight.",
		}),
		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "alerts_fired_total",
			Help:      "Alerts fired by category.",
		}, []string{"category"}),
		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "alerts_suppressed_total",
			Help:      "High-severity evaluations suppressed by the cooldown window.",
		}, []string{"category"}),
		StateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "alert_state_errors_total",
			Help:      "Alert-state store failures (alert evaluation failed closed).",
		}),
		StateConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "alert_state_conflicts_total",
			Help:      "Optimistic-lock conflicts with a concurrent evaluation.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "alert_publish_errors_total",
			Help:      "Failures publishing fired alerts to the notification topic.",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "provider_requests_total",
			Help:      "Measurement provider requests by outcome.",
		}, []string{"outcome"}),
		ProviderCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "provider_cache_total",
			Help:      "Measurement cache lookups by result.",
		}, []string{"result"}),
	}
}
