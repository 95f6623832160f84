package backend

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harman-mundh/localcommunity/core/csql"
	"github.com/harman-mundh/localcommunity/core/logger"
)

// metrics holds the prometheus metrics of the backend
type metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	viewFailures *prometheus.CounterVec
	mutations    *prometheus.CounterVec
}

func newMetrics(registry *prometheus.Registry, db *csql.DB) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "community_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "community_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "community_request_failures_total",
				Help: "Total number of failed requests by status",
			},
			[]string{"status"},
		),
		viewFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "community_view_count_failures_total",
				Help: "Total number of views that could not be counted",
			},
			[]string{"resource"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "community_mutations_total",
				Help: "Total number of successful mutations",
			},
			[]string{"resource", "operation"},
		),
	}

	registry.MustRegister(
		m.requests,
		m.duration,
		m.failures,
		m.viewFailures,
		m.mutations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if db != nil {
		registry.MustRegister(collectors.NewDBStatsCollector(db.DB, "community"))
	}
	return m
}

// statusRecorder captures the status code of a response
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// middleware counts requests and observes their duration by route template
func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (b *Backend) handleMetrics() {
	logger.Default().Debugln("  handle route: /metrics GET")
	b.router.Handle("/metrics", promhttp.HandlerFor(b.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// handleHealth adds /health, which pings the database if there is one
func (b *Backend) handleHealth() {
	b.handle("/health", func(w http.ResponseWriter, r *http.Request) {
		if b.db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := b.db.Health(ctx); err != nil {
				b.fail(w, r, upstream("4790", err))
				return
			}
		}
		b.respond(w, http.StatusOK, map[string]string{"status": "ok"})
	}, http.MethodGet)
}
