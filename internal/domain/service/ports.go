package service

import (
	"context"
	"errors"
	"time"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

// ErrNotificationSkipped is returned by a NotificationSender when the
// subscriber cannot be reached (no contact details, deleted account)
var ErrNotificationSkipped = errors.New("notification skipped")

// LockHandle releases a lock obtained from a Locker
type LockHandle interface {
	Release(ctx context.Context) error
}

// Locker is a non-blocking, cluster-wide mutual exclusion service.
// TryAcquire returns ok=false immediately if the key is already held.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (handle LockHandle, ok bool, err error)
}

// GatewayResult is the outcome reported by the payment gateway
type GatewayResult struct {
	Success       bool
	TransactionID string
	Error         string
}

// PaymentGateway charges the subscriber's saved payment method. A returned
// error means the charge could not be attempted; a declined charge is a
// result with Success=false.
type PaymentGateway interface {
	ProcessSubscriptionRenewal(ctx context.Context, payment *entity.Payment, subscription *entity.Subscription) (*GatewayResult, error)
}

// NotificationSender delivers renewal messages to the subscriber
type NotificationSender interface {
	SendRenewalReminderNotification(ctx context.Context, subscription *entity.Subscription, daysUntilRenewal int) error
	SendRenewalSuccessNotification(ctx context.Context, subscription *entity.Subscription, amount float64) error
	SendPaymentFailedNotification(ctx context.Context, subscription *entity.Subscription, reason string) error
}

// ErrorReporter escalates critical errors to an external tracker
type ErrorReporter interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
}

// RenewalObserver receives renewal and reminder outcomes for metrics
type RenewalObserver interface {
	ObserveRenewal(outcome RenewalOutcome, subType entity.SubscriptionType, elapsed time.Duration)
	ObserveReminder(daysBefore int, sent bool)
}

type noopReporter struct{}

func (noopReporter) CaptureError(context.Context, error, map[string]string) {}

type noopObserver struct{}

func (noopObserver) ObserveRenewal(RenewalOutcome, entity.SubscriptionType, time.Duration) {}
func (noopObserver) ObserveReminder(int, bool)                                            {}
