package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/renewals")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad(t *testing.T) {
	t.Run("applies renewal defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Renewal.MaxAttempts)
		assert.Equal(t, 3, cfg.Renewal.GracePeriodDays)
		assert.Equal(t, time.Hour, cfg.Renewal.LockTTL)
		assert.Equal(t, 72*time.Hour, cfg.Renewal.Window)
		assert.Equal(t, LockBackendRedis, cfg.Renewal.LockBackend)
		assert.Equal(t, "sandbox", cfg.Payment.MidtransEnvironment)
		assert.Equal(t, 8080, cfg.Server.Port)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("RENEWAL_MAX_ATTEMPTS", "5")
		t.Setenv("RENEWAL_GRACE_PERIOD_DAYS", "7")
		t.Setenv("RENEWAL_LOCK_TTL", "30m")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Renewal.MaxAttempts)
		assert.Equal(t, 7, cfg.Renewal.GracePeriodDays)
		assert.Equal(t, 30*time.Minute, cfg.Renewal.LockTTL)
	})

	t.Run("short JWT secret is rejected", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("JWT_SECRET", "short")

		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("unknown payment environment is rejected", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("MIDTRANS_ENVIRONMENT", "staging")

		_, err := Load()
		assert.ErrorContains(t, err, "MIDTRANS_ENVIRONMENT")
	})

	t.Run("unknown lock backend is rejected", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("RENEWAL_LOCK_BACKEND", "etcd")

		_, err := Load()
		assert.ErrorContains(t, err, "RENEWAL_LOCK_BACKEND")
	})
}
