package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/service"
	"github.com/bivex/subscription-renewals/tests/mocks"
)

func TestGracePeriodService(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	inGrace := func(started time.Time) *entity.Subscription {
		sub := dueSubscription(now)
		sub.PaymentStatus = entity.PaymentStatusFailed
		var f entity.RenewalFailureState
		f.RecordFailure("Card declined", started)
		f.StartGracePeriod(started, 3)
		sub.SetFailureState(f)
		return sub
	}

	t.Run("CheckGracePeriodExpiry hands expired windows to the handler", func(t *testing.T) {
		store := mocks.NewMemoryStore()
		expired := inGrace(now.AddDate(0, 0, -4))
		active := inGrace(now.AddDate(0, 0, -1))
		store.Put(expired)
		store.Put(active)

		handler := mocks.NewMockGraceExpiryHandler()
		handler.On("HandleExpiredGracePeriod", mock.Anything,
			mock.MatchedBy(func(s *entity.Subscription) bool { return s.ID == expired.ID }),
			mock.Anything).Return(nil)

		svc := service.NewGracePeriodService(store, handler, 0, nil)
		svc.SetClock(func() time.Time { return now })

		result, err := svc.CheckGracePeriodExpiry(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Checked)
		assert.Equal(t, 1, result.Handled)
		assert.Empty(t, result.Errors)
		handler.AssertNumberOfCalls(t, "HandleExpiredGracePeriod", 1)
	})

	t.Run("subscriptions that paid after their grace window opened are not handed over", func(t *testing.T) {
		f := newProcessorFixture(t)
		f.notificationsSucceed()
		f.gateway.On("ProcessSubscriptionRenewal", mock.Anything, mock.Anything, mock.Anything).
			Return(&service.GatewayResult{Success: false, Error: "Card declined"}, nil).Once()
		f.gateway.On("ProcessSubscriptionRenewal", mock.Anything, mock.Anything, mock.Anything).
			Return(&service.GatewayResult{Success: true, TransactionID: "tx-2"}, nil).Once()

		start := f.clock.Now()
		sub := dueSubscription(start)
		ended := start.Add(-time.Hour)
		sub.EndsAt = &ended
		sub.NextBillingDate = &ended
		f.store.Put(sub)

		assert.False(t, f.processor.ProcessRenewal(ctx, sub))
		require.NotNil(t, f.store.Subscription(sub.ID).FailureState().GracePeriodExpiresAt)
		assert.True(t, f.processor.ProcessRenewal(ctx, sub))

		recovered := f.store.Subscription(sub.ID)
		assert.Equal(t, entity.PaymentStatusPaid, recovered.PaymentStatus)
		require.NotNil(t, recovered.FailureState().GracePeriodExpiresAt)

		handler := mocks.NewMockGraceExpiryHandler()
		svc := service.NewGracePeriodService(f.store, handler, 0, nil)
		svc.SetClock(func() time.Time { return start.AddDate(0, 0, 5) })

		result, err := svc.CheckGracePeriodExpiry(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Checked)
		handler.AssertNotCalled(t, "HandleExpiredGracePeriod", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("handler errors are collected", func(t *testing.T) {
		store := mocks.NewMemoryStore()
		expired := inGrace(now.AddDate(0, 0, -5))
		store.Put(expired)

		handler := mocks.NewMockGraceExpiryHandler()
		handler.On("HandleExpiredGracePeriod", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("policy unavailable"))

		svc := service.NewGracePeriodService(store, handler, 0, nil)
		svc.SetClock(func() time.Time { return now })

		result, err := svc.CheckGracePeriodExpiry(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Handled)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, expired.ID, result.Errors[0].SubscriptionID)
	})

	t.Run("default handler leaves subscription active", func(t *testing.T) {
		store := mocks.NewMemoryStore()
		expired := inGrace(now.AddDate(0, 0, -4))
		store.Put(expired)

		svc := service.NewGracePeriodService(store, nil, 0, nil)
		svc.SetClock(func() time.Time { return now })

		result, err := svc.CheckGracePeriodExpiry(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Handled)
		assert.Equal(t, entity.StatusActive, store.Subscription(expired.ID).Status)
	})

	t.Run("GetGracePeriodStatus", func(t *testing.T) {
		store := mocks.NewMemoryStore()
		active := inGrace(now.AddDate(0, 0, -1))
		store.Put(active)
		plain := dueSubscription(now)
		store.Put(plain)

		svc := service.NewGracePeriodService(store, nil, 0, nil)
		svc.SetClock(func() time.Time { return now })

		gp, err := svc.GetGracePeriodStatus(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, gp.DaysRemaining(now))

		_, err = svc.GetGracePeriodStatus(ctx, plain.ID)
		assert.ErrorIs(t, err, service.ErrGracePeriodNotActive)
	})
}
