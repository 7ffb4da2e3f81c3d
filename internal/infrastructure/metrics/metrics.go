package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Job metrics
	JobRuns     *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
	JobPanics   *prometheus.CounterVec
	JobSkipped  *prometheus.CounterVec

	// Settlement metrics
	OffersExpired        prometheus.Counter
	CommissionsReleased  prometheus.Counter
	CommissionAmount     prometheus.Histogram
	WalletsMissing       prometheus.Counter
	SettlementFailures   prometheus.Counter
	SettlementBatchSize  prometheus.Histogram
	ShipmentsAutoCancels prometheus.Counter

	// Lifecycle monitor metrics
	NotificationsCreated      *prometheus.CounterVec
	NotificationsDeduplicated *prometheus.CounterVec
	MonitorCheckFailures      *prometheus.CounterVec

	// Retention metrics
	RowsPurged *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBErrors *prometheus.CounterVec

	// Leader lock metrics
	LockAcquisitions *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		JobRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freightsettle_job_runs_total",
				Help: "Total number of scheduled job runs",
			},
			[]string{"job", "status"},
		),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freightsettle_job_duration_seconds",
				Help:    "Duration of scheduled job runs",
				Buckets: []float64{.05, .1, .5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"job"},
		),
		JobPanics: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freightsettle_job_panics_total",
				Help: "Total number of recovered panics in scheduled jobs",
			},
			[]string{"job"},
		),
		JobSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freightsettle_job_skipped_total",
				Help: "Total number of job ticks skipped",
			},
			[]string{"job", "reason"},
		),

		OffersExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "freightsettle_offers_expired_total",
			Help: "Total number of pending offers expired",
		}),
		CommissionsReleased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "freightsettle_commissions_released_total",
			Help: "Total number of commission holds released",
		}),
		CommissionAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "freightsettle_commission_release_amount",
			Help:    "Released commission amounts",
			Buckets: []float64{0.1, 1, 5, 10, 50, 100, 500, 1000},
		}),
		WalletsMissing: promauto.NewCounter(prometheus.CounterOpts{
			Name: "freightsettle_settlement_wallets_missing_total",
			Help: "Total number of expired offers whose carrier had no wallet",
		}),
		SettlementFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "freightsettle_settlement_failures_total",
			Help: "Total number of settlement batches rolled back",
		}),
		SettlementBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "freightsettle_settlement_batch_size",
			Help:    "Number of offers locked per settlement batch",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		}),
		ShipmentsAutoCancels: promauto.NewCounter(prometheus.CounterOpts{
			Name: "freightsettle_shipments_auto_cancelled_total",
			Help: "Total number of shipments cancelled after a stale acceptance",
		}),

		NotificationsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freightsettle_notifications_created_total",
				Help: "Total number of notifications written",
			},
			[]string{"type"},
		),
		NotificationsDeduplicated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freightsettle_notifications_deduplicated_total",
				Help: "Total number of notifications suppressed by the dedup gate",
			},
			[]string{"type"},
		),
		MonitorCheckFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freightsettle_monitor_check_failures_total",
				Help: "Total number of failed lifecycle monitor checks",
			},
			[]string{"check"},
		),

		RowsPurged: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freightsettle_retention_rows_purged_total",
				Help: "Total number of rows deleted by retention cleanup",
			},
			[]string{"table"},
		),

		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freightsettle_http_requests_total",
				Help: "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freightsettle_http_request_duration_seconds",
				Help:    "Duration of admin HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freightsettle_db_errors_total",
				Help: "Total number of database errors",
			},
			[]string{"tag"},
		),

		LockAcquisitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freightsettle_leader_lock_acquisitions_total",
				Help: "Leader lock acquisition attempts",
			},
			[]string{"job", "result"},
		),
	}
}
