package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/infrastructure/mailer"
	"github.com/bivex/subscription-renewals/internal/infrastructure/notification"
)

// NotificationJobHandler renders and emails queued notifications
type NotificationJobHandler struct {
	renderer *notification.Renderer
	mailer   mailer.Mailer
	logger   *zap.Logger
}

// NewNotificationJobHandler creates a new notification job handler
func NewNotificationJobHandler(renderer *notification.Renderer, m mailer.Mailer, logger *zap.Logger) *NotificationJobHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationJobHandler{renderer: renderer, mailer: m, logger: logger}
}

// HandleSendNotification delivers one notification. Relay errors are retried by asynq.
func (h *NotificationJobHandler) HandleSendNotification(ctx context.Context, t *asynq.Task) error {
	var n notification.Notification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	email, err := h.renderer.Render(n)
	if err != nil {
		return fmt.Errorf("render %s: %v: %w", n.Kind, err, asynq.SkipRetry)
	}

	if err := h.mailer.Send(ctx, email); err != nil {
		return err
	}

	h.logger.Info("notification delivered",
		zap.String("subscription_id", n.SubscriptionID.String()),
		zap.String("kind", string(n.Kind)),
		zap.String("locale", n.Locale))
	return nil
}
