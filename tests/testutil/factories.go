package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

// InsertSubscriber stores a subscriber with an email address
func InsertSubscriber(ctx context.Context, t *testing.T, pool *pgxpool.Pool, academyID int64) *entity.Subscriber {
	t.Helper()
	s := entity.NewSubscriber(academyID, "Test Student", "student_"+uuid.NewString()[:8]+"@example.com", "en")
	_, err := pool.Exec(ctx, `
		INSERT INTO subscribers (id, academy_id, name, email, locale, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.AcademyID, s.Name, s.Email, s.Locale, s.CreatedAt)
	require.NoError(t, err)
	return s
}

// SubscriptionOption customizes a subscription built by NewDueSubscription
type SubscriptionOption func(*entity.Subscription)

// BillingAt sets the next billing and paid-through dates
func BillingAt(at time.Time) SubscriptionOption {
	return func(s *entity.Subscription) {
		s.NextBillingDate = &at
		s.EndsAt = &at
	}
}

// WithStatus sets the lifecycle and payment status
func WithStatus(status entity.SubscriptionStatus, payment entity.PaymentStatus) SubscriptionOption {
	return func(s *entity.Subscription) {
		s.Status = status
		s.PaymentStatus = payment
	}
}

// WithUpdatedAt sets the last modification time
func WithUpdatedAt(at time.Time) SubscriptionOption {
	return func(s *entity.Subscription) {
		s.UpdatedAt = at
	}
}

// NewDueSubscription builds an active monthly auto-renewing subscription billing tomorrow
func NewDueSubscription(subscriber *entity.Subscriber, opts ...SubscriptionOption) *entity.Subscription {
	now := time.Now().UTC().Truncate(time.Microsecond)
	next := now.Add(24 * time.Hour)
	starts := now.AddDate(0, -1, 1)
	quarterly := 135.0
	sub := &entity.Subscription{
		ID:               uuid.New(),
		AcademyID:        subscriber.AcademyID,
		SubscriberID:     subscriber.ID,
		SubscriptionCode: fmt.Sprintf("SUB-%d-%s", subscriber.AcademyID, uuid.NewString()[:6]),
		Type:             entity.TypeAcademic,
		Status:           entity.StatusActive,
		PaymentStatus:    entity.PaymentStatusPaid,
		AutoRenew:        true,
		BillingCycle:     entity.BillingMonthly,
		MonthlyPrice:     50,
		QuarterlyPrice:   &quarterly,
		FinalPrice:       50,
		Currency:         "SAR",
		PaymentToken:     "tok_" + uuid.NewString()[:8],
		StartsAt:         &starts,
		EndsAt:           &next,
		NextBillingDate:  &next,
		Metadata:         map[string]any{},
		CreatedAt:        starts,
		UpdatedAt:        starts,
	}
	for _, opt := range opts {
		opt(sub)
	}
	return sub
}

// InsertSubscription stores sub as-is
func InsertSubscription(ctx context.Context, t *testing.T, pool *pgxpool.Pool, sub *entity.Subscription) {
	t.Helper()
	metadata, err := json.Marshal(sub.Metadata)
	require.NoError(t, err)
	if sub.Metadata == nil {
		metadata = []byte("{}")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO subscriptions (
			id, academy_id, subscriber_id, subscription_code, type, status, payment_status,
			auto_renew, billing_cycle, monthly_price, quarterly_price, yearly_price, final_price,
			currency, payment_token, starts_at, ends_at, next_billing_date, last_payment_date,
			renewal_reminder_sent_at, cancelled_at, cancellation_reason, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25
		)`,
		sub.ID, sub.AcademyID, sub.SubscriberID, sub.SubscriptionCode, string(sub.Type), string(sub.Status),
		string(sub.PaymentStatus), sub.AutoRenew, string(sub.BillingCycle), sub.MonthlyPrice, sub.QuarterlyPrice,
		sub.YearlyPrice, sub.FinalPrice, sub.Currency, sub.PaymentToken, sub.StartsAt, sub.EndsAt,
		sub.NextBillingDate, sub.LastPaymentDate, sub.RenewalReminderSentAt, sub.CancelledAt,
		sub.CancellationReason, string(metadata), sub.CreatedAt, sub.UpdatedAt,
	)
	require.NoError(t, err)
}
