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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/app"
	"github.com/bivex/subscription-renewals/internal/application/middleware"
	"github.com/bivex/subscription-renewals/internal/infrastructure/config"
	"github.com/bivex/subscription-renewals/internal/infrastructure/logging"
	"github.com/bivex/subscription-renewals/internal/infrastructure/metrics"
	app_handler "github.com/bivex/subscription-renewals/internal/interfaces/http/handlers"
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

	logging.Logger.Info("Starting renewal API server",
		zap.Int("port", cfg.Server.Port),
		zap.String("environment", cfg.Sentry.Environment),
	)

	ctx := context.Background()
	infra, err := app.Connect(ctx, cfg)
	if err != nil {
		logging.Logger.Fatal("Failed to connect infrastructure", zap.Error(err))
	}
	defer infra.Close()

	renewalMetrics := metrics.NewRenewalMetrics()
	services := app.NewServices(cfg, infra, renewalMetrics)

	// Initialize middleware
	jwtMiddleware := middleware.NewJWTMiddleware(cfg.JWT, infra.Redis)
	rateLimiter := middleware.NewRateLimiter(infra.Redis, true) // fail open

	renewalHandler := app_handler.NewRenewalAdminHandler(
		services.Processor,
		services.Statistics,
		services.Grace,
		services.Subscriptions,
		services.StatsCache,
	).WithAudit(services.Audit)

	// Setup Gin router
	if cfg.Sentry.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		logging.RequestMiddleware(logging.Logger),
		renewalMetrics.Middleware(),
	)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		if err := infra.DB.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if err := infra.Redis.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET(cfg.Server.MetricsPath, renewalMetrics.Handler())

	// Admin routes
	v1 := router.Group("/v1")
	renewals := v1.Group("/admin/renewals")
	renewals.Use(jwtMiddleware.Authenticate())
	{
		read := renewals.Group("",
			middleware.RequireRole(middleware.RoleAdmin, middleware.RoleSupport),
			rateLimiter.Middleware(middleware.ByOperator, middleware.AdminReadConfig),
		)
		write := renewals.Group("",
			middleware.AdminMiddleware(),
			rateLimiter.Middleware(middleware.ByOperator, middleware.AdminWriteConfig),
		)
		renewalHandler.Register(read, write)
	}

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	go func() {
		logging.Logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logging.Logger.Info("Server exited")
}
