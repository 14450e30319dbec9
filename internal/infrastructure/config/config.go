package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Sentry   SentryConfig
	Log      LogConfig
	Renewal  RenewalConfig
	Payment  PaymentConfig
	SMTP     SMTPConfig
	Worker   WorkerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsPath     string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret    string
	AccessTTL time.Duration
	Issuer    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL          string
	Password     string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// LogConfig holds log output configuration. An empty File logs to stdout only.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Renewal lock backends. The memory backend only serializes renewals inside
// one process and suits single-worker deployments.
const (
	LockBackendRedis  = "redis"
	LockBackendMemory = "memory"
)

// RenewalConfig holds the renewal policy
type RenewalConfig struct {
	MaxAttempts      int
	GracePeriodDays  int
	LockTTL          time.Duration
	LockBackend      string
	Window           time.Duration
	BatchLimit       int
	StatsCacheTTL    time.Duration
	ProcessSchedule  string
	ReminderSchedule string
	GraceSchedule    string
}

// PaymentConfig holds payment gateway configuration
type PaymentConfig struct {
	MidtransServerKey   string
	MidtransEnvironment string
}

// SMTPConfig holds outgoing mail configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	Concurrency     int
	MetricsPort     int
	ShutdownTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// .env file is optional for production (env vars are used)
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:            v.GetInt("server_port"),
			ReadTimeout:     v.GetDuration("server_read_timeout"),
			WriteTimeout:    v.GetDuration("server_write_timeout"),
			ShutdownTimeout: v.GetDuration("server_shutdown_timeout"),
			MetricsPath:     v.GetString("server_metrics_path"),
		},
		Database: DatabaseConfig{
			URL:            v.GetString("database_url"),
			MaxConnections: v.GetInt("database_max_connections"),
			MinConnections: v.GetInt("database_min_connections"),
			MaxLifetime:    v.GetDuration("database_max_lifetime"),
			MaxIdleTime:    v.GetDuration("database_max_idle_time"),
			HealthCheck:    v.GetDuration("database_health_check"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis_url"),
			Password:     v.GetString("redis_password"),
			PoolSize:     v.GetInt("redis_pool_size"),
			MinIdleConns: v.GetInt("redis_min_idle_conns"),
			DialTimeout:  v.GetDuration("redis_dial_timeout"),
			ReadTimeout:  v.GetDuration("redis_read_timeout"),
			WriteTimeout: v.GetDuration("redis_write_timeout"),
			PoolTimeout:  v.GetDuration("redis_pool_timeout"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("jwt_secret"),
			AccessTTL: v.GetDuration("jwt_access_ttl"),
			Issuer:    v.GetString("jwt_issuer"),
		},
		Sentry: SentryConfig{
			DSN:         v.GetString("sentry_dsn"),
			Environment: v.GetString("sentry_environment"),
			Release:     v.GetString("sentry_release"),
		},
		Log: LogConfig{
			Level:      v.GetString("log_level"),
			File:       v.GetString("log_file"),
			MaxSizeMB:  v.GetInt("log_max_size_mb"),
			MaxBackups: v.GetInt("log_max_backups"),
			MaxAgeDays: v.GetInt("log_max_age_days"),
		},
		Renewal: RenewalConfig{
			MaxAttempts:      v.GetInt("renewal_max_attempts"),
			GracePeriodDays:  v.GetInt("renewal_grace_period_days"),
			LockTTL:          v.GetDuration("renewal_lock_ttl"),
			LockBackend:      v.GetString("renewal_lock_backend"),
			Window:           v.GetDuration("renewal_window"),
			BatchLimit:       v.GetInt("renewal_batch_limit"),
			StatsCacheTTL:    v.GetDuration("renewal_stats_cache_ttl"),
			ProcessSchedule:  v.GetString("renewal_process_schedule"),
			ReminderSchedule: v.GetString("renewal_reminder_schedule"),
			GraceSchedule:    v.GetString("renewal_grace_schedule"),
		},
		Payment: PaymentConfig{
			MidtransServerKey:   v.GetString("midtrans_server_key"),
			MidtransEnvironment: v.GetString("midtrans_environment"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp_host"),
			Port:     v.GetInt("smtp_port"),
			Username: v.GetString("smtp_username"),
			Password: v.GetString("smtp_password"),
			From:     v.GetString("smtp_from"),
			FromName: v.GetString("smtp_from_name"),
		},
		Worker: WorkerConfig{
			Concurrency:     v.GetInt("worker_concurrency"),
			MetricsPort:     v.GetInt("worker_metrics_port"),
			ShutdownTimeout: v.GetDuration("worker_shutdown_timeout"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_read_timeout", 10*time.Second)
	v.SetDefault("server_write_timeout", 10*time.Second)
	v.SetDefault("server_shutdown_timeout", 30*time.Second)
	v.SetDefault("server_metrics_path", "/metrics")

	// Database defaults
	db := DefaultDatabaseConfig()
	v.SetDefault("database_url", "")
	v.SetDefault("database_max_connections", db.MaxConnections)
	v.SetDefault("database_min_connections", db.MinConnections)
	v.SetDefault("database_max_lifetime", db.MaxLifetime)
	v.SetDefault("database_max_idle_time", db.MaxIdleTime)
	v.SetDefault("database_health_check", db.HealthCheck)

	// JWT defaults
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_access_ttl", 15*time.Minute)
	v.SetDefault("jwt_issuer", "subscription-renewals")

	// Redis defaults
	v.SetDefault("redis_url", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_pool_size", 10)
	v.SetDefault("redis_min_idle_conns", 3)
	v.SetDefault("redis_dial_timeout", 5*time.Second)
	v.SetDefault("redis_read_timeout", 3*time.Second)
	v.SetDefault("redis_write_timeout", 3*time.Second)
	v.SetDefault("redis_pool_timeout", 4*time.Second)

	// Observability defaults
	v.SetDefault("sentry_dsn", "")
	v.SetDefault("sentry_environment", "production")
	v.SetDefault("sentry_release", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 100)
	v.SetDefault("log_max_backups", 7)
	v.SetDefault("log_max_age_days", 30)

	// Renewal policy defaults
	v.SetDefault("renewal_max_attempts", 3)
	v.SetDefault("renewal_grace_period_days", 3)
	v.SetDefault("renewal_lock_ttl", time.Hour)
	v.SetDefault("renewal_lock_backend", LockBackendRedis)
	v.SetDefault("renewal_window", 72*time.Hour)
	v.SetDefault("renewal_batch_limit", 500)
	v.SetDefault("renewal_stats_cache_ttl", 5*time.Minute)
	v.SetDefault("renewal_process_schedule", "0 * * * *")
	v.SetDefault("renewal_reminder_schedule", "0 9 * * *")
	v.SetDefault("renewal_grace_schedule", "30 * * * *")

	// Payment and mail defaults
	v.SetDefault("midtrans_server_key", "")
	v.SetDefault("midtrans_environment", "sandbox")
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_username", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("smtp_from", "")
	v.SetDefault("smtp_from_name", "Academy Billing")

	v.SetDefault("worker_concurrency", 10)
	v.SetDefault("worker_metrics_port", 9091)
	v.SetDefault("worker_shutdown_timeout", 30*time.Second)
}

func validate(cfg *Config) error {
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if cfg.Renewal.MaxAttempts < 1 {
		return fmt.Errorf("RENEWAL_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Renewal.GracePeriodDays < 0 {
		return fmt.Errorf("RENEWAL_GRACE_PERIOD_DAYS must not be negative")
	}
	switch cfg.Renewal.LockBackend {
	case LockBackendRedis, LockBackendMemory:
	default:
		return fmt.Errorf("RENEWAL_LOCK_BACKEND must be redis or memory")
	}
	switch cfg.Payment.MidtransEnvironment {
	case "sandbox", "production":
	default:
		return fmt.Errorf("MIDTRANS_ENVIRONMENT must be sandbox or production")
	}
	return nil
}
