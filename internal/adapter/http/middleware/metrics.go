package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/freightsettle/internal/infrastructure/metrics"
)

const unmatchedRoute = "unmatched"

// Metrics records request counts and latency per chi route pattern.
type Metrics struct {
	metrics *metrics.Metrics
}

// NewMetrics creates a new Metrics middleware.
func NewMetrics(m *metrics.Metrics) *Metrics {
	return &Metrics{metrics: m}
}

// Wrap wraps an http.Handler with request metrics.
func (m *Metrics) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := routePattern(r)
		m.metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.metrics.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routePattern keeps label cardinality bounded: /api/v1/jobs/hourly/run is
// recorded as /api/v1/jobs/{name}/run.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
