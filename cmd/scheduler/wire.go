package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	postgresRepo "github.com/iho/freightsettle/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/freightsettle/internal/adapter/repository/redis"
	"github.com/iho/freightsettle/internal/infrastructure/clock"
	"github.com/iho/freightsettle/internal/infrastructure/config"
	"github.com/iho/freightsettle/internal/infrastructure/logging"
	"github.com/iho/freightsettle/internal/infrastructure/metrics"
	"github.com/iho/freightsettle/internal/infrastructure/scheduler"
	"github.com/iho/freightsettle/internal/usecase"
)

// buildScheduler wires repositories and use cases into a stopped scheduler
// with the hourly and daily jobs registered. redisClient is nil when the
// leader lock is disabled.
func buildScheduler(
	cfg *config.Config,
	pool *pgxpool.Pool,
	redisClient *goredis.Client,
	log *logging.Logger,
	m *metrics.Metrics,
) (*scheduler.Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	clk := clock.NewSystem()
	idGen := postgresRepo.NewULIDGenerator()
	txManager := postgresRepo.NewTxManager(pool)

	offerRepo := postgresRepo.NewOfferRepository(pool)
	walletRepo := postgresRepo.NewWalletRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerEntryRepository(pool)
	shipmentRepo := postgresRepo.NewShipmentRepository(pool)
	notificationRepo := postgresRepo.NewNotificationRepository(pool)
	messageRepo := postgresRepo.NewMessageRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	retrier := postgresRepo.NewRetrier(retryConfig(cfg), log.Logger)

	settlement := usecase.NewSettlementUseCase(
		txManager, offerRepo, walletRepo, ledgerRepo,
		idGen, clk, retrier, log, m, cfg.SettlementBatchSize,
	)
	gate := usecase.NewNotificationGate(notificationRepo, idGen, clk, loc, m)
	monitor := usecase.NewLifecycleUseCase(
		txManager, shipmentRepo, walletRepo, auditRepo,
		gate, idGen, clk, log, m, lifecycleConfig(cfg),
	)
	retention := usecase.NewRetentionUseCase(
		messageRepo, notificationRepo, auditRepo,
		clk, log, m, retentionPolicy(cfg),
	)

	opts := []scheduler.Option{scheduler.WithClock(clk)}
	if redisClient != nil {
		opts = append(opts, scheduler.WithLocker(redisRepo.NewJobLock(redisClient, cfg.LeaderLockTTL)))
	}

	sched := scheduler.New(scheduler.NewCronTrigger(log.Logger), log, m, opts...)

	jobs := []scheduler.Job{
		{Name: usecase.JobDaily, Schedule: cfg.DailySchedule, Run: usecase.DailyTick(retention)},
		{Name: usecase.JobHourly, Schedule: cfg.HourlySchedule, Run: usecase.HourlyTick(settlement, monitor)},
	}
	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			return nil, err
		}
	}

	return sched, nil
}

func retryConfig(cfg *config.Config) postgresRepo.RetryConfig {
	return postgresRepo.RetryConfig{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitial,
		MaxInterval:     cfg.RetryMaxInterval,
		MaxElapsedTime:  cfg.RetryMaxElapsed,
	}
}

func lifecycleConfig(cfg *config.Config) usecase.LifecycleConfig {
	return usecase.LifecycleConfig{
		StaleAfter:     cfg.StaleShipmentAfter,
		NoOffersMinAge: cfg.NoOffersMinAge,
		NoOffersMaxAge: cfg.NoOffersMaxAge,
		ScanLimit:      cfg.MonitorScanLimit,
	}
}

func retentionPolicy(cfg *config.Config) usecase.RetentionPolicy {
	return usecase.RetentionPolicy{
		MessageDays:      cfg.MessageRetentionDays,
		NotificationDays: cfg.NotificationRetentionDays,
		AuditLogDays:     cfg.AuditLogRetentionDays,
	}
}

// jobLogger builds the slog logger used by jobs. Development forces debug.
func jobLogger(cfg *config.Config) *logging.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}

	format := "json"
	if cfg.LogFormat == "console" || cfg.IsDevelopment() {
		format = "text"
	}

	return logging.New(level, format)
}

func pingRedis(client *goredis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
