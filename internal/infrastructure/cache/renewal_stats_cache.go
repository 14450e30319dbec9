package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

// Cache key constants
const (
	KeyRenewalStats        = "renewals:stats:%d:%d"
	KeyRenewalStatsPattern = "renewals:stats:*"
)

// DefaultStatsTTL is used when the configured TTL is not positive
const DefaultStatsTTL = 5 * time.Minute

// RenewalStatsCache caches dashboard statistics in redis as JSON
type RenewalStatsCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRenewalStatsCache creates a new statistics cache
func NewRenewalStatsCache(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RenewalStatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenewalStatsCache{client: client, ttl: ttl, logger: logger}
}

func statsKey(academyID int64, windowDays int) string {
	return fmt.Sprintf(KeyRenewalStats, academyID, windowDays)
}

// GetStatistics returns the cached statistics, or nil on a miss
func (c *RenewalStatsCache) GetStatistics(ctx context.Context, academyID int64, windowDays int) (*entity.RenewalStatistics, error) {
	data, err := c.client.Get(ctx, statsKey(academyID, windowDays)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get renewal statistics: %w", err)
	}

	var stats entity.RenewalStatistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal renewal statistics: %w", err)
	}
	return &stats, nil
}

// SetStatistics stores statistics under their academy and window
func (c *RenewalStatsCache) SetStatistics(ctx context.Context, stats *entity.RenewalStatistics) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal renewal statistics: %w", err)
	}

	key := statsKey(stats.AcademyID, stats.WindowDays)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set renewal statistics: %w", err)
	}

	c.logger.Debug("Cached renewal statistics",
		zap.Int64("academy_id", stats.AcademyID),
		zap.Int("window_days", stats.WindowDays),
	)
	return nil
}

// Invalidate drops every cached statistics entry. Called after a renewal batch.
func (c *RenewalStatsCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, KeyRenewalStatsPattern, 100).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan statistics keys: %w", err)
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete statistics keys: %w", err)
		}
		c.logger.Debug("Invalidated renewal statistics", zap.Int("count", len(keys)))
	}
	return nil
}
