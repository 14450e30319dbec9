//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/service"
	"github.com/bivex/subscription-renewals/internal/infrastructure/cache"
	"github.com/bivex/subscription-renewals/internal/infrastructure/lock"
	infrarepo "github.com/bivex/subscription-renewals/internal/infrastructure/persistence/repository"
	"github.com/bivex/subscription-renewals/tests/mocks"
	"github.com/bivex/subscription-renewals/tests/testutil"
)

func TestRenewalFlowIntegration(t *testing.T) {
	ctx := context.Background()
	db := testutil.StartPostgres(ctx, t)
	rdb := testutil.StartRedis(ctx, t)

	subs := infrarepo.NewSubscriptionRepository(db.Pool)
	payments := infrarepo.NewPaymentRepository(db.Pool)
	gateway := mocks.NewMockPaymentGateway()
	sender := mocks.NewMockNotificationSender()
	sender.On("SendRenewalSuccessNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	sender.On("SendPaymentFailedNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	locker := lock.NewRedisLocker(rdb)
	processor := service.NewRenewalProcessor(
		infrarepo.NewUnitOfWork(db.Pool),
		subs,
		locker,
		gateway,
		service.NewRenewalNotificationService(sender, nil),
		service.DefaultRenewalConfig(),
	)

	t.Run("successful charge extends the subscription and records a paid payment", func(t *testing.T) {
		db.Truncate(ctx, t)
		subscriber := testutil.InsertSubscriber(ctx, t, db.Pool, 1)
		sub := testutil.NewDueSubscription(subscriber)
		testutil.InsertSubscription(ctx, t, db.Pool, sub)

		gateway.On("ProcessSubscriptionRenewal", mock.Anything, mock.Anything, mock.Anything).
			Return(&service.GatewayResult{Success: true, TransactionID: "mid-1"}, nil).Once()

		loaded, err := subs.GetByID(ctx, sub.ID)
		require.NoError(t, err)
		outcome, err := processor.Process(ctx, loaded)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeSucceeded, outcome)

		renewed, err := subs.GetByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentStatusPaid, renewed.PaymentStatus)
		assert.True(t, renewed.NextBillingDate.After(*sub.NextBillingDate))

		recorded, err := payments.GetBySubscriptionID(ctx, sub.ID)
		require.NoError(t, err)
		require.Len(t, recorded, 1)
		assert.Equal(t, entity.PaymentRecordPaid, recorded[0].Status)
		assert.Equal(t, "mid-1", recorded[0].GatewayTxID)
		assert.Equal(t, 50.0, recorded[0].Amount)
	})

	t.Run("repeated declines open a grace period without cancelling", func(t *testing.T) {
		db.Truncate(ctx, t)
		subscriber := testutil.InsertSubscriber(ctx, t, db.Pool, 1)
		sub := testutil.NewDueSubscription(subscriber)
		testutil.InsertSubscription(ctx, t, db.Pool, sub)

		gateway.On("ProcessSubscriptionRenewal", mock.Anything, mock.Anything, mock.Anything).
			Return(&service.GatewayResult{Success: false, Error: "Insufficient funds"}, nil).Times(3)

		for i := 0; i < 3; i++ {
			loaded, err := subs.GetByID(ctx, sub.ID)
			require.NoError(t, err)
			outcome, err := processor.Process(ctx, loaded)
			require.NoError(t, err)
			assert.Equal(t, service.OutcomeFailed, outcome)
		}

		failed, err := subs.GetByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusActive, failed.Status)
		assert.Equal(t, entity.PaymentStatusFailed, failed.PaymentStatus)
		state := failed.FailureState()
		assert.Equal(t, 3, state.FailedCount)
		require.NotNil(t, state.GracePeriodExpiresAt)

		recorded, err := payments.GetBySubscriptionID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Len(t, recorded, 3)
		for _, p := range recorded {
			assert.Equal(t, entity.PaymentRecordFailed, p.Status)
			assert.Equal(t, "Insufficient funds", p.FailureReason)
		}
	})

	t.Run("a held lock skips the subscription", func(t *testing.T) {
		db.Truncate(ctx, t)
		subscriber := testutil.InsertSubscriber(ctx, t, db.Pool, 1)
		sub := testutil.NewDueSubscription(subscriber)
		testutil.InsertSubscription(ctx, t, db.Pool, sub)

		handle, ok, err := locker.TryAcquire(ctx, service.LockKey(sub.ID), time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		defer handle.Release(ctx)

		outcome, err := processor.Process(ctx, sub)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeSkippedLocked, outcome)

		recorded, err := payments.GetBySubscriptionID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Empty(t, recorded)
	})

	t.Run("statistics are cached in redis until invalidated", func(t *testing.T) {
		db.Truncate(ctx, t)
		statsCache := cache.NewRenewalStatsCache(rdb, time.Minute, nil)
		stats := service.NewRenewalStatisticsService(subs, infrarepo.NewRenewalStatisticsRepository(db.Pool), statsCache, nil)

		first, err := stats.GetRenewalStatistics(ctx, 1, 30)
		require.NoError(t, err)
		assert.Zero(t, first.TotalSuccessful)

		subscriber := testutil.InsertSubscriber(ctx, t, db.Pool, 1)
		sub := testutil.NewDueSubscription(subscriber)
		paidAt := time.Now().UTC().Add(-time.Hour)
		sub.LastPaymentDate = &paidAt
		testutil.InsertSubscription(ctx, t, db.Pool, sub)

		cached, err := stats.GetRenewalStatistics(ctx, 1, 30)
		require.NoError(t, err)
		assert.Zero(t, cached.TotalSuccessful)

		require.NoError(t, statsCache.Invalidate(ctx))
		fresh, err := stats.GetRenewalStatistics(ctx, 1, 30)
		require.NoError(t, err)
		assert.Equal(t, 1, fresh.TotalSuccessful)
	})
}
