// Package observability provides the Prometheus metrics surface and the
// structured logger used across the service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clearsky/internal/types"
)

// Metrics owns a private registry so tests can construct isolated
// instances without collector name collisions.
type Metrics struct {
	registry *prometheus.Registry

	// Check run rate by outcome. Watch for: error ratio, stalled schedules.
	CheckRunsTotal *prometheus.CounterVec

	// Check run latency. Watch for: runs approaching the schedule period.
	CheckRunDuration prometheus.Histogram

	// Condition evaluations by result. Trigger rate = triggered/(triggered+quiet).
	EvaluationsTotal *prometheus.CounterVec

	// Snapshot fetch failures. Watch for: upstream degradation.
	ProviderErrorsTotal prometheus.Counter

	// Expired alerts removed by cleanup.
	AlertsExpiredTotal prometheus.Counter

	// HTTP request rate by method, route, and status.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per route.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent HTTP requests in flight.
	HTTPRequestsInFlight prometheus.Gauge
}

// NewMetrics creates and registers all collectors on a fresh registry,
// including the standard process and Go runtime collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CheckRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkRunsTotal",
				Help: "Total number of alert check runs",
			},
			[]string{"outcome"},
		),
		CheckRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "checkRunDurationSeconds",
				Help:    "Alert check run latency in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertEvaluationsTotal",
				Help: "Total number of alert condition evaluations",
			},
			[]string{"result"},
		),
		ProviderErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "weatherProviderErrorsTotal",
				Help: "Total number of failed weather snapshot fetches",
			},
		),
		AlertsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "alertsExpiredTotal",
				Help: "Total number of expired alerts removed by cleanup",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpRequestsTotal",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "statusCode"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "httpRequestDurationSeconds",
				Help:    "HTTP request latency in seconds (per request)",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "httpRequestsInFlight",
				Help: "Number of HTTP requests currently being served",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
		m.CheckRunsTotal, m.CheckRunDuration,
		m.EvaluationsTotal, m.ProviderErrorsTotal, m.AlertsExpiredTotal,
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight,
	)
	return m
}

// ObserveCheckRun records the outcome, duration, and expiry count of a
// check run.
func (m *Metrics) ObserveCheckRun(result types.CheckResult, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.CheckRunsTotal.WithLabelValues(outcome).Inc()
	m.CheckRunDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	if result.Expired > 0 {
		m.AlertsExpiredTotal.Add(float64(result.Expired))
	}
}

// ObserveEvaluation records one condition evaluation result.
func (m *Metrics) ObserveEvaluation(triggered bool) {
	result := "quiet"
	if triggered {
		result = "triggered"
	}
	m.EvaluationsTotal.WithLabelValues(result).Inc()
}

// ObserveProviderError records one failed snapshot fetch.
func (m *Metrics) ObserveProviderError() {
	m.ProviderErrorsTotal.Inc()
}

// Handler returns the /metrics endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments HTTP handlers with request count, latency, and
// in-flight gauges. The route label uses the chi route pattern so path
// parameters do not explode metric cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
	})
}
