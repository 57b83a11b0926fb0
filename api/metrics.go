/*
metrics.go - Prometheus instrumentation

PURPOSE:
  Counters and histograms for the HTTP surface and the background jobs.
  Exposed on GET /metrics.

METRICS:
  leave_ledger_http_requests_total{method,route,status}
  leave_ledger_http_request_duration_seconds{method,route}
  leave_ledger_grants_issued_total{source}        manual | schedule
  leave_ledger_grants_expired_total
  leave_ledger_usages_total{status}               status after the request
  leave_ledger_job_runs_total{kind,status}
  leave_ledger_job_duration_seconds{kind}

Metrics are registered against the Registerer passed to NewMetrics so
tests can use a private registry.
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ledger's Prometheus collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	grantsIssued  *prometheus.CounterVec
	grantsExpired prometheus.Counter
	usages        *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg. A nil reg uses a fresh
// private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leave_ledger_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leave_ledger_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		grantsIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leave_ledger_grants_issued_total",
				Help: "Grants issued, by source",
			},
			[]string{"source"},
		),
		grantsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leave_ledger_grants_expired_total",
				Help: "Grants moved to EXPIRED by the sweeper",
			},
		),
		usages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leave_ledger_usages_total",
				Help: "Usage requests accepted, by resulting status",
			},
			[]string{"status"},
		),
		jobRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leave_ledger_job_runs_total",
				Help: "Background job runs, by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leave_ledger_job_duration_seconds",
				Help:    "Background job duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RecordGrantIssued(source string, n int) {
	if n > 0 {
		m.grantsIssued.WithLabelValues(source).Add(float64(n))
	}
}

func (m *Metrics) RecordGrantsExpired(n int) {
	if n > 0 {
		m.grantsExpired.Add(float64(n))
	}
}

func (m *Metrics) RecordUsage(status string) {
	m.usages.WithLabelValues(status).Inc()
}

// RecordJob records one background job run.
func (m *Metrics) RecordJob(kind string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.jobRuns.WithLabelValues(kind, status).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(d.Seconds())
}
