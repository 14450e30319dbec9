package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

// RenewalNotificationService sends renewal notifications to subscribers.
// Success and failure notices are best-effort: delivery errors are logged
// and never propagated to the renewal flow.
type RenewalNotificationService struct {
	sender NotificationSender
	logger *zap.Logger
}

// NewRenewalNotificationService creates a new renewal notification service
func NewRenewalNotificationService(sender NotificationSender, logger *zap.Logger) *RenewalNotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenewalNotificationService{sender: sender, logger: logger}
}

// SendReminder sends an upcoming-renewal reminder. Errors are returned so the
// caller can collect them.
func (s *RenewalNotificationService) SendReminder(ctx context.Context, sub *entity.Subscription, daysUntilRenewal int) error {
	if err := s.sender.SendRenewalReminderNotification(ctx, sub, daysUntilRenewal); err != nil {
		if errors.Is(err, ErrNotificationSkipped) {
			return err
		}
		return fmt.Errorf("send renewal reminder: %w", err)
	}
	return nil
}

// NotifyRenewalSucceeded sends the renewal receipt
func (s *RenewalNotificationService) NotifyRenewalSucceeded(ctx context.Context, sub *entity.Subscription, amount float64) {
	if err := s.sender.SendRenewalSuccessNotification(ctx, sub, amount); err != nil {
		s.logFailure("renewal_success", sub, err)
	}
}

// NotifyPaymentFailed tells the subscriber the renewal charge did not go through
func (s *RenewalNotificationService) NotifyPaymentFailed(ctx context.Context, sub *entity.Subscription, reason string) {
	if err := s.sender.SendPaymentFailedNotification(ctx, sub, reason); err != nil {
		s.logFailure("payment_failed", sub, err)
	}
}

func (s *RenewalNotificationService) logFailure(kind string, sub *entity.Subscription, err error) {
	if errors.Is(err, ErrNotificationSkipped) {
		s.logger.Debug("notification skipped",
			zap.String("kind", kind),
			zap.String("subscription_id", sub.ID.String()))
		return
	}
	s.logger.Warn("failed to send notification",
		zap.String("kind", kind),
		zap.String("subscription_id", sub.ID.String()),
		zap.Error(err))
}
