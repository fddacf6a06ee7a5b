// Package metrics exposes Prometheus instrumentation for API traffic and computations.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "osumetrics"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	apiRequests        *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	tokenRefreshes     prometheus.Counter

	matchCostRuns    *prometheus.CounterVec
	matchEventPages  prometheus.Histogram
	performanceRuns  *prometheus.CounterVec
	computationError *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "osu_api",
			Name:      "requests_total",
			Help:      "osu! API requests by endpoint and HTTP status.",
		}, []string{"endpoint", "status"}),
		apiRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "osu_api",
			Name:      "request_duration_seconds",
			Help:      "osu! API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		tokenRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "osu_api",
			Name:      "token_refreshes_total",
			Help:      "Client-credential tokens fetched.",
		}),
		matchCostRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_cost_runs_total",
			Help:      "Match cost computations by formula.",
		}, []string{"formula"}),
		matchEventPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_event_pages",
			Help:      "Event pages fetched per match.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		}),
		performanceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "performance_runs_total",
			Help:      "Performance recomputations by mode.",
		}, []string{"mode"}),
		computationError: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "computation_errors_total",
			Help:      "Failed computations by component.",
		}, []string{"component"}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiRequestDuration, m.tokenRefreshes,
		m.matchCostRuns, m.matchEventPages, m.performanceRuns, m.computationError,
	)
	return m
}

// ObserveAPIRequest records one osu! API call. status 0 means a transport error.
func (m *Metrics) ObserveAPIRequest(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, statusLabel(status)).Inc()
	m.apiRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// TokenRefreshed counts a client-credential token fetch.
func (m *Metrics) TokenRefreshed() {
	if m == nil {
		return
	}
	m.tokenRefreshes.Inc()
}

// MatchCostComputed records a finished match cost run.
func (m *Metrics) MatchCostComputed(formula string, pages int) {
	if m == nil {
		return
	}
	m.matchCostRuns.WithLabelValues(formula).Inc()
	m.matchEventPages.Observe(float64(pages))
}

// PerformanceComputed records a finished performance recomputation.
func (m *Metrics) PerformanceComputed(mode string) {
	if m == nil {
		return
	}
	m.performanceRuns.WithLabelValues(mode).Inc()
}

// ComputationFailed records a failed computation.
func (m *Metrics) ComputationFailed(component string) {
	if m == nil {
		return
	}
	m.computationError.WithLabelValues(component).Inc()
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
