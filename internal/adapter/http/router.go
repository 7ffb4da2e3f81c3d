package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/freightsettle/internal/adapter/http/handler"
	"github.com/iho/freightsettle/internal/adapter/http/middleware"
	"github.com/iho/freightsettle/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for the admin router.
type RouterConfig struct {
	HealthHandler    *handler.HealthHandler
	SchedulerHandler *handler.SchedulerHandler
	MetricsHandler   http.Handler
	Metrics          *metrics.Metrics
	RunLimiter       *middleware.RateLimiter
	Logger           zerolog.Logger
}

// NewRouter creates the admin HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetrics(cfg.Metrics).Wrap)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/scheduler", cfg.SchedulerHandler.Status)
		r.With(cfg.RunLimiter.Limit).Post("/jobs/{name}/run", cfg.SchedulerHandler.RunJob)
	})

	return r
}
