package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncPageFetch("ok")
	m.IncGeneration("instagram", "ok")
	m.IncPublish("manual", "ok")
	m.IncSweep("ok")
	m.IncTokenExchange("ok")

	called := false
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("nil middleware must pass requests through")
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.IncPageFetch("ok")
	m.IncPageFetch("ok")
	m.IncPageFetch("empty")

	if got := testutil.ToFloat64(m.PageFetches.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok fetches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PageFetches.WithLabelValues("empty")); got != 1 {
		t.Errorf("empty fetches = %v, want 1", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/posts/"+id, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/posts/{id}", "404")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.IncSweep("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `studio_sweep_runs_total{outcome="ok"} 1`) {
		t.Errorf("exposition missing sweep counter:\n%s", body)
	}
}
