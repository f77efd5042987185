// Package metrics exposes the studio's Prometheus counters and the HTTP
// request middleware that feeds them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	PageFetches    *prometheus.CounterVec
	Generations    *prometheus.CounterVec
	Publishes      *prometheus.CounterVec
	SweepRuns      *prometheus.CounterVec
	TokenExchanges *prometheus.CounterVec
}

// New registers every counter on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studio_http_request_duration_seconds",
			Help:    "HTTP request duration by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		PageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_page_fetches_total",
			Help: "Source page fetches by outcome",
		}, []string{"outcome"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_generations_total",
			Help: "Generation requests by platform and outcome",
		}, []string{"platform", "outcome"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_linkedin_publishes_total",
			Help: "LinkedIn publish attempts by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		SweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_sweep_runs_total",
			Help: "Scheduled publish sweeps by outcome",
		}, []string{"outcome"}),
		TokenExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_linkedin_token_exchanges_total",
			Help: "LinkedIn OAuth code exchanges by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.PageFetches,
		m.Generations,
		m.Publishes,
		m.SweepRuns,
		m.TokenExchanges,
		collectors.NewGoCollector(),
	)
	return m
}

// IncPageFetch counts one page fetch outcome ("ok", "cached", "http_error",
// "network_error", "empty").
func (m *Metrics) IncPageFetch(outcome string) {
	if m == nil || m.PageFetches == nil {
		return
	}
	m.PageFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncGeneration(platform, outcome string) {
	if m == nil || m.Generations == nil {
		return
	}
	m.Generations.WithLabelValues(platform, outcome).Inc()
}

func (m *Metrics) IncPublish(trigger, outcome string) {
	if m == nil || m.Publishes == nil {
		return
	}
	m.Publishes.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) IncSweep(outcome string) {
	if m == nil || m.SweepRuns == nil {
		return
	}
	m.SweepRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTokenExchange(outcome string) {
	if m == nil || m.TokenExchanges == nil {
		return
	}
	m.TokenExchanges.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations labelled with the matched
// chi route pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
