// Package app wires the renewal services shared by the API and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/domain/repository"
	"github.com/bivex/subscription-renewals/internal/domain/service"
	"github.com/bivex/subscription-renewals/internal/infrastructure/cache"
	"github.com/bivex/subscription-renewals/internal/infrastructure/config"
	"github.com/bivex/subscription-renewals/internal/infrastructure/external/payment"
	"github.com/bivex/subscription-renewals/internal/infrastructure/lock"
	"github.com/bivex/subscription-renewals/internal/infrastructure/logging"
	"github.com/bivex/subscription-renewals/internal/infrastructure/notification"
	"github.com/bivex/subscription-renewals/internal/infrastructure/persistence/pool"
	persistence "github.com/bivex/subscription-renewals/internal/infrastructure/persistence/repository"
)

// Infrastructure holds the process-wide connections
type Infrastructure struct {
	DB    *pgxpool.Pool
	Redis redis.UniversalClient
	Queue *asynq.Client
}

// Connect opens the database pool, the Redis client and the task queue client
func Connect(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	db, err := pool.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	rdb, err := NewRedisClient(cfg.Redis)
	if err != nil {
		pool.Close(db)
		return nil, err
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close(db)
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Infrastructure{
		DB:    db,
		Redis: rdb,
		Queue: asynq.NewClientFromRedisClient(rdb),
	}, nil
}

// NewRedisClient builds a client from the configured URL and pool settings
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolTimeout = cfg.PoolTimeout
	return redis.NewClient(opts), nil
}

// Close releases every connection. The queue client shares the Redis
// connection and is closed through it.
func (i *Infrastructure) Close() {
	if err := i.Redis.Close(); err != nil {
		logging.Logger.Warn("failed to close redis", zap.Error(err))
	}
	pool.Close(i.DB)
}

// Services is the renewal service graph
type Services struct {
	Subscriptions repository.SubscriptionRepository
	Processor     *service.RenewalProcessor
	Reminders     *service.RenewalReminderService
	Statistics    *service.RenewalStatisticsService
	Grace         *service.GracePeriodService
	Audit         *service.AuditService
	StatsCache    *cache.RenewalStatsCache
}

// NewLocker returns the renewal lock for the configured backend
func NewLocker(cfg config.RenewalConfig, rdb redis.UniversalClient) service.Locker {
	if cfg.LockBackend == config.LockBackendMemory {
		logging.Logger.Warn("using in-process renewal lock; run a single worker")
		return lock.NewMemoryLocker()
	}
	return lock.NewRedisLocker(rdb)
}

// RenewalConfig maps the configured policy onto the processor config
func RenewalConfig(cfg config.RenewalConfig) service.RenewalConfig {
	return service.RenewalConfig{
		MaxRenewalAttempts: cfg.MaxAttempts,
		GracePeriodDays:    cfg.GracePeriodDays,
		LockTTL:            cfg.LockTTL,
		RenewalWindow:      cfg.Window,
		BatchLimit:         cfg.BatchLimit,
	}
}

// NewServices builds the renewal services on top of infra. Notifications are
// queued on infra.Queue and delivered by the worker.
func NewServices(cfg *config.Config, infra *Infrastructure, observer service.RenewalObserver) *Services {
	subs := persistence.NewSubscriptionRepository(infra.DB)
	subscribers := persistence.NewSubscriberRepository(infra.DB)
	statsRepo := persistence.NewRenewalStatisticsRepository(infra.DB)
	uow := persistence.NewUnitOfWork(infra.DB)

	statsCache := cache.NewRenewalStatsCache(infra.Redis, cfg.Renewal.StatsCacheTTL, logging.WithComponent("stats_cache"))
	dispatcher := notification.NewDispatcher(subscribers, infra.Queue, logging.WithComponent("notifications"))
	notifier := service.NewRenewalNotificationService(dispatcher, logging.WithComponent("notifications"))
	gateway := payment.NewMidtransGateway(cfg.Payment.MidtransServerKey, cfg.Payment.MidtransEnvironment, logging.WithComponent("midtrans"))

	renewalCfg := RenewalConfig(cfg.Renewal)
	processor := service.NewRenewalProcessor(
		uow,
		subs,
		NewLocker(cfg.Renewal, infra.Redis),
		gateway,
		notifier,
		renewalCfg,
		service.WithErrorReporter(logging.NewSentryReporter(nil)),
		service.WithRenewalObserver(observer),
		service.WithLogger(logging.WithComponent("renewals")),
	)

	return &Services{
		Subscriptions: subs,
		Processor:     processor,
		Reminders:     service.NewRenewalReminderService(subs, notifier, observer, logging.WithComponent("reminders")),
		Statistics:    service.NewRenewalStatisticsService(subs, statsRepo, statsCache, logging.WithComponent("statistics")),
		Grace: service.NewGracePeriodService(
			subs,
			service.NewLoggingGraceExpiryHandler(logging.WithComponent("grace_period")),
			renewalCfg.BatchLimit,
			logging.WithComponent("grace_period"),
		),
		Audit:      service.NewAuditService(persistence.NewAuditLogRepository(infra.DB), logging.WithComponent("audit")),
		StatsCache: statsCache,
	}
}
