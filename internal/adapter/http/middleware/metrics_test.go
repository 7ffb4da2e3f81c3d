package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/iho/freightsettle/internal/infrastructure/metrics"
)

func newTestMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_http_requests_total"},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "test_http_request_duration_seconds"},
			[]string{"method", "path"},
		),
	}
}

func TestMetricsMiddlewareRecordsRoutePattern(t *testing.T) {
	testCases := []struct {
		name       string
		method     string
		path       string
		label      string
		statusCode int
	}{
		{
			name:       "job name collapses to pattern",
			method:     http.MethodPost,
			path:       "/api/v1/jobs/hourly/run",
			label:      "/api/v1/jobs/{name}/run",
			statusCode: http.StatusOK,
		},
		{
			name:       "static route kept as-is",
			method:     http.MethodGet,
			path:       "/health",
			label:      "/health",
			statusCode: http.StatusTeapot,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			path:       "/wp-admin/1234",
			label:      unmatchedRoute,
			statusCode: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestMetrics()

			r := chi.NewRouter()
			r.Use(NewMetrics(m).Wrap)
			r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})
			r.Post("/api/v1/jobs/{name}/run", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))

			if rr.Code != tc.statusCode {
				t.Fatalf("expected status %d, got %d", tc.statusCode, rr.Code)
			}

			counter := m.HTTPRequests.WithLabelValues(tc.method, tc.label, strconv.Itoa(tc.statusCode))
			if got := testutil.ToFloat64(counter); got != 1 {
				t.Fatalf("expected counter for %s to be 1, got %v", tc.label, got)
			}
		})
	}
}

func TestRecoveryReturns500(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/scheduler", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("expected panic to be logged, got %q", buf.String())
	}
}

func TestLoggingMiddlewareLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := NewLoggingMiddleware(logger).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))

	out := buf.String()
	if !strings.Contains(out, `"status":503`) || !strings.Contains(out, `"level":"error"`) {
		t.Fatalf("expected error-level request log with status, got %q", out)
	}
}
