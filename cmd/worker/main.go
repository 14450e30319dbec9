package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/app"
	"github.com/bivex/subscription-renewals/internal/infrastructure/config"
	"github.com/bivex/subscription-renewals/internal/infrastructure/logging"
	"github.com/bivex/subscription-renewals/internal/infrastructure/mailer"
	"github.com/bivex/subscription-renewals/internal/infrastructure/metrics"
	"github.com/bivex/subscription-renewals/internal/infrastructure/notification"
	worker_tasks "github.com/bivex/subscription-renewals/internal/worker/tasks"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logging.Init(cfg.Log, &cfg.Sentry); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()
	defer logging.FlushSentry()

	logging.Logger.Info("Starting renewal worker",
		zap.Int("concurrency", cfg.Worker.Concurrency),
	)

	ctx := context.Background()
	infra, err := app.Connect(ctx, cfg)
	if err != nil {
		logging.Logger.Fatal("Failed to connect infrastructure", zap.Error(err))
	}
	defer infra.Close()

	renewalMetrics := metrics.NewRenewalMetrics()
	services := app.NewServices(cfg, infra, renewalMetrics)

	renewalJobs := worker_tasks.NewRenewalJobHandler(
		services.Processor,
		services.Reminders,
		services.Grace,
		services.Subscriptions,
		infra.Queue,
		services.StatsCache,
		cfg.Renewal.LockTTL,
		logging.WithComponent("renewal_jobs"),
	)
	notificationJobs := worker_tasks.NewNotificationJobHandler(
		notification.NewRenderer(),
		mailer.NewSMTPMailer(cfg.SMTP, logging.WithComponent("mailer")),
		logging.WithComponent("notification_jobs"),
	)

	reporter := logging.NewSentryReporter(nil)

	// Initialize Asynq server
	server := asynq.NewServerFromRedisClient(infra.Redis, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			// Exponential backoff: 2^n seconds
			return time.Duration(1<<uint(n)) * time.Second
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			// renewal failures are reported by the processor itself
			if task.Type() != worker_tasks.TypeSendNotification {
				return
			}
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried < maxRetry && !errors.Is(err, asynq.SkipRetry) {
				return
			}
			reporter.CaptureError(ctx, err, map[string]string{"task_type": task.Type()})
		}),
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
		Logger:          logging.WithComponent("asynq").Sugar(),
	})

	// Register task handlers
	mux := asynq.NewServeMux()
	worker_tasks.RegisterHandlers(mux, renewalJobs, notificationJobs)

	// Start server in background
	if err := server.Start(mux); err != nil {
		logging.Logger.Fatal("Failed to start worker", zap.Error(err))
	}

	// Register scheduled tasks
	scheduler := asynq.NewSchedulerFromRedisClient(infra.Redis, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   logging.WithComponent("scheduler").Sugar(),
	})
	if err := worker_tasks.RegisterScheduledTasks(scheduler, cfg.Renewal); err != nil {
		logging.Logger.Fatal("Failed to register scheduled tasks", zap.Error(err))
	}

	// Start scheduler
	if err := scheduler.Start(); err != nil {
		logging.Logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Metrics endpoint
	gin.SetMode(gin.ReleaseMode)
	metricsRouter := gin.New()
	metricsRouter.Use(gin.Recovery())
	metricsRouter.GET(cfg.Server.MetricsPath, renewalMetrics.Handler())
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler:           metricsRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	logging.Logger.Info("Worker started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down worker...")

	scheduler.Shutdown()
	server.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	logging.Logger.Info("Worker exited")
}
