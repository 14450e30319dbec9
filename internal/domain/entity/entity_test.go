package entity_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

func TestNewSubscriber(t *testing.T) {
	s := entity.NewSubscriber(7, "Amina", "amina@example.com", "ar")

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, int64(7), s.AcademyID)
	assert.Equal(t, "ar", s.Locale)
	assert.False(t, s.IsDeleted())
	assert.True(t, s.HasEmail())
}

func TestSubscriber_HasEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected bool
	}{
		{name: "with email", email: "test@example.com", expected: true},
		{name: "without email", email: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := entity.NewSubscriber(1, "name", tt.email, "en")
			assert.Equal(t, tt.expected, s.HasEmail())
		})
	}
}

func TestNewSubscription(t *testing.T) {
	subscriberID := uuid.New()

	sub := entity.NewSubscription(7, subscriberID, entity.TypeAcademic, entity.BillingQuarterly, 40, "SAR")

	assert.NotEqual(t, uuid.Nil, sub.ID)
	assert.Equal(t, subscriberID, sub.SubscriberID)
	assert.Equal(t, entity.StatusActive, sub.Status)
	assert.Equal(t, entity.PaymentStatusPaid, sub.PaymentStatus)
	assert.True(t, sub.AutoRenew)
	assert.Equal(t, 120.0, sub.FinalPrice)
	require.NotNil(t, sub.EndsAt)
	assert.Equal(t, sub.StartsAt.AddDate(0, 3, 0), *sub.EndsAt)
	assert.Equal(t, *sub.EndsAt, *sub.NextBillingDate)

	lifetime := entity.NewSubscription(7, subscriberID, entity.TypeCourse, entity.BillingLifetime, 900, "SAR")
	assert.False(t, lifetime.AutoRenew)
	assert.Equal(t, 900.0, lifetime.FinalPrice)
}

func TestSubscription_CanRenew(t *testing.T) {
	tests := []struct {
		status   entity.SubscriptionStatus
		expected bool
	}{
		{entity.StatusActive, true},
		{entity.StatusPaused, true},
		{entity.StatusPending, false},
		{entity.StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			sub := &entity.Subscription{Status: tt.status}
			assert.Equal(t, tt.expected, sub.CanRenew())
		})
	}
}

func TestSubscription_CalculateRenewalPrice(t *testing.T) {
	quarterly, yearly := 130.0, 480.0

	tests := []struct {
		name      string
		cycle     entity.BillingCycle
		quarterly *float64
		yearly    *float64
		expected  float64
	}{
		{"monthly", entity.BillingMonthly, nil, nil, 50},
		{"quarterly explicit", entity.BillingQuarterly, &quarterly, nil, 130},
		{"quarterly fallback", entity.BillingQuarterly, nil, nil, 150},
		{"yearly explicit", entity.BillingYearly, nil, &yearly, 480},
		{"yearly fallback", entity.BillingYearly, nil, nil, 600},
		{"lifetime uses final price", entity.BillingLifetime, nil, nil, 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &entity.Subscription{
				BillingCycle:   tt.cycle,
				MonthlyPrice:   50,
				QuarterlyPrice: tt.quarterly,
				YearlyPrice:    tt.yearly,
				FinalPrice:     999,
			}
			assert.Equal(t, tt.expected, sub.CalculateRenewalPrice())
		})
	}
}

func TestSubscription_CalculateNextBillingDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	next := now.AddDate(0, 0, 2)
	ends := now.AddDate(0, 0, 5)

	t.Run("advances from current billing date", func(t *testing.T) {
		sub := &entity.Subscription{BillingCycle: entity.BillingMonthly, NextBillingDate: &next, EndsAt: &ends}
		assert.Equal(t, next.AddDate(0, 1, 0), sub.CalculateNextBillingDate(now))
	})

	t.Run("falls back to paid-through date", func(t *testing.T) {
		sub := &entity.Subscription{BillingCycle: entity.BillingMonthly, EndsAt: &ends}
		assert.Equal(t, ends.AddDate(0, 1, 0), sub.CalculateNextBillingDate(now))
	})

	t.Run("falls back to now", func(t *testing.T) {
		sub := &entity.Subscription{BillingCycle: entity.BillingYearly}
		assert.Equal(t, now.AddDate(1, 0, 0), sub.CalculateNextBillingDate(now))
	})
}

func TestSubscription_Clone(t *testing.T) {
	ends := time.Now()
	sub := &entity.Subscription{ID: uuid.New(), EndsAt: &ends, Metadata: map[string]any{"a": 1}}

	c := sub.Clone()
	require.Equal(t, sub, c)

	*c.EndsAt = ends.Add(time.Hour)
	c.Metadata["a"] = 2
	assert.Equal(t, ends, *sub.EndsAt)
	assert.Equal(t, 1, sub.Metadata["a"])
}

func TestRenewalPayment(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := &entity.Subscription{ID: uuid.New(), AcademyID: 42, SubscriberID: uuid.New(), Currency: "SAR"}

	p := entity.NewRenewalPayment(sub, 75, now)
	assert.Equal(t, sub.ID, p.SubscriptionID)
	assert.Equal(t, entity.PaymentRecordPending, p.Status)
	assert.Regexp(t, `^RNW-42-20260310-[0-9A-Z]{6}$`, p.PaymentCode)

	p.MarkPaid("tx-9", now)
	assert.True(t, p.IsPaid())
	assert.Equal(t, "tx-9", p.GatewayTxID)

	p.MarkFailed("Card declined", now)
	assert.True(t, p.IsFailed())
	assert.Equal(t, "Card declined", p.FailureReason)

	assert.NotEqual(t, entity.GenerateRenewalCode(42, now), entity.GenerateRenewalCode(42, now))
}
