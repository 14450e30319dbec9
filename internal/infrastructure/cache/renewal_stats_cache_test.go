package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

func newTestCache(t *testing.T) (*RenewalStatsCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRenewalStatsCache(client, time.Minute, nil), mr
}

func TestRenewalStatsCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss returns nil without error", func(t *testing.T) {
		c, _ := newTestCache(t)

		stats, err := c.GetStatistics(ctx, 7, 30)
		require.NoError(t, err)
		assert.Nil(t, stats)
	})

	t.Run("round trips statistics per academy and window", func(t *testing.T) {
		c, mr := newTestCache(t)
		in := &entity.RenewalStatistics{
			AcademyID:       7,
			WindowDays:      30,
			TotalSuccessful: 7,
			TotalFailed:     3,
			TotalRevenue:    350,
			SuccessRate:     70,
			ByType: map[entity.SubscriptionType]entity.RenewalTypeCounts{
				entity.TypeQuran: {Type: entity.TypeQuran, Successful: 7, Failed: 3, Revenue: 350},
			},
			GeneratedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		}

		require.NoError(t, c.SetStatistics(ctx, in))
		assert.True(t, mr.Exists("renewals:stats:7:30"))

		out, err := c.GetStatistics(ctx, 7, 30)
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.Equal(t, in.TotalRevenue, out.TotalRevenue)
		assert.Equal(t, 70.0, out.SuccessRate)
		assert.Equal(t, 7, out.ByType[entity.TypeQuran].Successful)

		other, err := c.GetStatistics(ctx, 7, 7)
		require.NoError(t, err)
		assert.Nil(t, other)
	})

	t.Run("entries expire after the ttl", func(t *testing.T) {
		c, mr := newTestCache(t)
		require.NoError(t, c.SetStatistics(ctx, &entity.RenewalStatistics{AcademyID: 1, WindowDays: 30}))

		mr.FastForward(2 * time.Minute)

		out, err := c.GetStatistics(ctx, 1, 30)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("invalidate removes every statistics key", func(t *testing.T) {
		c, mr := newTestCache(t)
		require.NoError(t, c.SetStatistics(ctx, &entity.RenewalStatistics{AcademyID: 1, WindowDays: 30}))
		require.NoError(t, c.SetStatistics(ctx, &entity.RenewalStatistics{AcademyID: 2, WindowDays: 7}))
		require.NoError(t, mr.Set("unrelated", "x"))

		require.NoError(t, c.Invalidate(ctx))

		assert.False(t, mr.Exists("renewals:stats:1:30"))
		assert.False(t, mr.Exists("renewals:stats:2:7"))
		assert.True(t, mr.Exists("unrelated"))
	})

	t.Run("corrupt entry surfaces an error", func(t *testing.T) {
		c, mr := newTestCache(t)
		require.NoError(t, mr.Set("renewals:stats:3:30", "{not json"))

		_, err := c.GetStatistics(ctx, 3, 30)
		assert.Error(t, err)
	})
}
