package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/freightsettle/internal/adapter/http"
	"github.com/iho/freightsettle/internal/adapter/http/handler"
	"github.com/iho/freightsettle/internal/adapter/http/middleware"
	"github.com/iho/freightsettle/internal/infrastructure/config"
	"github.com/iho/freightsettle/internal/infrastructure/logger"
	"github.com/iho/freightsettle/internal/infrastructure/metrics"
	"github.com/iho/freightsettle/internal/infrastructure/postgres"
	"github.com/iho/freightsettle/internal/infrastructure/redis"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup loggers
	log.Logger = logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Development: cfg.IsDevelopment(),
		Service:     "freightsettle",
	})
	jobLog := jobLogger(cfg)
	slog.SetDefault(jobLog.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis only when instances need to elect a leader
	var redisClient *goredis.Client
	var redisPing handler.Pinger
	if cfg.LeaderLockEnabled {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		redisPing = handler.PingFunc(pingRedis(redisClient))
		log.Info().Dur("ttl", cfg.LeaderLockTTL).Msg("leader lock enabled")
	}

	m := metrics.New()

	sched, err := buildScheduler(cfg, pool, redisClient, jobLog, m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build scheduler")
	}

	// Ticks get their own context so a shutdown signal lets them finish.
	if err := sched.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	runLimiter := middleware.NewRateLimiter(cfg.RunRateLimit, cfg.RunRateBurst)
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runLimiter.Cleanup()
			}
		}
	}()

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		HealthHandler:    handler.NewHealthHandler(handler.PingFunc(pool.Ping), redisPing),
		SchedulerHandler: handler.NewSchedulerHandler(sched, log.Logger),
		MetricsHandler:   promhttp.Handler(),
		Metrics:          m,
		RunLimiter:       runLimiter,
		Logger:           log.Logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting admin server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("admin server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server forced to shutdown")
	}

	select {
	case <-sched.Stop().Done():
		log.Info().Msg("in-flight jobs finished")
	case <-shutdownCtx.Done():
		log.Warn().Msg("timed out waiting for in-flight jobs")
	}

	log.Info().Msg("scheduler stopped")
}
