package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
	"github.com/bivex/subscription-renewals/internal/domain/service"
)

// Enqueuer is satisfied by *asynq.Client
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

const sendMaxRetry = 5

// Dispatcher implements service.NotificationSender by enqueueing a send task
// for the subscriber. Delivery happens in the worker.
type Dispatcher struct {
	subscribers repository.SubscriberRepository
	queue       Enqueuer
	logger      *zap.Logger
}

var _ service.NotificationSender = (*Dispatcher)(nil)

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(subscribers repository.SubscriberRepository, queue Enqueuer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{subscribers: subscribers, queue: queue, logger: logger}
}

func (d *Dispatcher) SendRenewalReminderNotification(ctx context.Context, sub *entity.Subscription, daysUntilRenewal int) error {
	return d.dispatch(ctx, sub, func(n *Notification) {
		n.Kind = KindRenewalReminder
		n.DaysUntilRenewal = daysUntilRenewal
		n.Amount = sub.CalculateRenewalPrice()
	})
}

func (d *Dispatcher) SendRenewalSuccessNotification(ctx context.Context, sub *entity.Subscription, amount float64) error {
	return d.dispatch(ctx, sub, func(n *Notification) {
		n.Kind = KindRenewalSucceeded
		n.Amount = amount
	})
}

func (d *Dispatcher) SendPaymentFailedNotification(ctx context.Context, sub *entity.Subscription, reason string) error {
	return d.dispatch(ctx, sub, func(n *Notification) {
		n.Kind = KindPaymentFailed
		n.Reason = reason
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, sub *entity.Subscription, fill func(*Notification)) error {
	subscriber, err := d.subscribers.GetByID(ctx, sub.SubscriberID)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			return fmt.Errorf("%w: subscriber %s not found", service.ErrNotificationSkipped, sub.SubscriberID)
		}
		return err
	}
	if subscriber.IsDeleted() || !subscriber.HasEmail() {
		return fmt.Errorf("%w: subscriber %s has no reachable email", service.ErrNotificationSkipped, subscriber.ID)
	}

	n := Notification{
		SubscriptionID:   sub.ID,
		SubscriptionCode: sub.SubscriptionCode,
		Email:            subscriber.Email,
		Name:             subscriber.Name,
		Locale:           subscriber.Locale,
		Currency:         sub.Currency,
		NextBillingDate:  sub.NextBillingDate,
	}
	fill(&n)

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	info, err := d.queue.EnqueueContext(ctx, asynq.NewTask(TaskTypeSend, payload), asynq.MaxRetry(sendMaxRetry))
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	d.logger.Debug("notification enqueued",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("kind", string(n.Kind)),
		zap.String("task_id", info.ID))
	return nil
}
