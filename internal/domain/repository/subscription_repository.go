package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

// SubscriptionRepository defines the interface for subscription data access
type SubscriptionRepository interface {
	// GetByID retrieves a subscription by ID
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Subscription, error)

	// GetByIDForUpdate retrieves a subscription and holds a row-level write lock
	// until the surrounding transaction ends. Only meaningful inside a UnitOfWork.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Subscription, error)

	// Update persists every mutable field of the subscription
	Update(ctx context.Context, subscription *entity.Subscription) error

	// ListDueForRenewal retrieves active auto-renew subscriptions billed on or before the given time
	ListDueForRenewal(ctx context.Context, before time.Time, limit int) ([]*entity.Subscription, error)

	// ListBillingBetween retrieves active auto-renew subscriptions whose next billing date
	// falls in [from, to). When unremindedOnly is set, subscriptions already reminded are skipped.
	ListBillingBetween(ctx context.Context, from, to time.Time, unremindedOnly bool) ([]*entity.Subscription, error)

	// MarkReminderSent stamps renewal_reminder_sent_at
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error

	// ListGracePeriodExpired retrieves active subscriptions still failing payment
	// whose grace period ended before now
	ListGracePeriodExpired(ctx context.Context, now time.Time, limit int) ([]*entity.Subscription, error)
}
