package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
	"github.com/bivex/subscription-renewals/internal/domain/service"
)

// ProcessRenewalPayload is the payload for a single renewal attempt
type ProcessRenewalPayload struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
}

// NewProcessRenewalTask builds the task for one subscription
func NewProcessRenewalTask(id uuid.UUID) *asynq.Task {
	return asynq.NewTask(TypeProcessRenewal, mustMarshalJSON(ProcessRenewalPayload{SubscriptionID: id}))
}

// StatsInvalidator drops cached statistics after renewals change them
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// RenewalJobHandler handles renewal background jobs
type RenewalJobHandler struct {
	processor *service.RenewalProcessor
	reminders *service.RenewalReminderService
	grace     *service.GracePeriodService
	subs      repository.SubscriptionRepository
	queue     Enqueuer
	stats     StatsInvalidator
	uniqueTTL time.Duration
	logger    *zap.Logger
}

// NewRenewalJobHandler creates a new renewal job handler. stats may be nil.
func NewRenewalJobHandler(
	processor *service.RenewalProcessor,
	reminders *service.RenewalReminderService,
	grace *service.GracePeriodService,
	subs repository.SubscriptionRepository,
	queue Enqueuer,
	stats StatsInvalidator,
	uniqueTTL time.Duration,
	logger *zap.Logger,
) *RenewalJobHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if uniqueTTL <= 0 {
		uniqueTTL = time.Hour
	}
	return &RenewalJobHandler{
		processor: processor,
		reminders: reminders,
		grace:     grace,
		subs:      subs,
		queue:     queue,
		stats:     stats,
		uniqueTTL: uniqueTTL,
		logger:    logger,
	}
}

// HandleSweepDueRenewals enqueues one renewal task per due subscription.
// A subscription already queued is not queued again.
func (h *RenewalJobHandler) HandleSweepDueRenewals(ctx context.Context, _ *asynq.Task) error {
	due, err := h.processor.ListDue(ctx)
	if err != nil {
		return err
	}

	var enqueued, duplicates, failed int
	for _, sub := range due {
		_, err := h.queue.EnqueueContext(ctx, NewProcessRenewalTask(sub.ID),
			asynq.Unique(h.uniqueTTL), asynq.MaxRetry(0))
		switch {
		case errors.Is(err, asynq.ErrDuplicateTask):
			duplicates++
		case err != nil:
			failed++
			h.logger.Error("failed to enqueue renewal",
				zap.String("subscription_id", sub.ID.String()), zap.Error(err))
		default:
			enqueued++
		}
	}

	h.logger.Info("due renewals swept",
		zap.Int("due", len(due)),
		zap.Int("enqueued", enqueued),
		zap.Int("already_queued", duplicates),
		zap.Int("enqueue_failed", failed))
	return nil
}

// HandleProcessRenewal runs one renewal attempt. Failures are recorded on the
// subscription by the processor, so the task itself is never retried.
func (h *RenewalJobHandler) HandleProcessRenewal(ctx context.Context, t *asynq.Task) error {
	var p ProcessRenewalPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	sub, err := h.subs.GetByID(ctx, p.SubscriptionID)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			h.logger.Warn("renewal task for missing subscription",
				zap.String("subscription_id", p.SubscriptionID.String()))
			return nil
		}
		return err
	}

	outcome, err := h.processor.Process(ctx, sub)
	if !outcome.IsSkipped() {
		h.invalidateStats(ctx)
	}
	if err != nil {
		return fmt.Errorf("renewal %s %s: %v: %w", p.SubscriptionID, outcome, err, asynq.SkipRetry)
	}
	return nil
}

// HandleSendReminders sends the scheduled renewal reminders
func (h *RenewalJobHandler) HandleSendReminders(ctx context.Context, _ *asynq.Task) error {
	result, err := h.reminders.SendRenewalReminders(ctx)
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		h.logger.Warn("renewal reminders finished with errors",
			zap.Int("sent", result.Sent),
			zap.Int("errors", len(result.Errors)))
	}
	return nil
}

// HandleCheckGraceExpiry hands expired grace periods to the configured handler
func (h *RenewalJobHandler) HandleCheckGraceExpiry(ctx context.Context, _ *asynq.Task) error {
	result, err := h.grace.CheckGracePeriodExpiry(ctx)
	if err != nil {
		return err
	}
	h.logger.Info("grace period expiry checked",
		zap.Int("checked", result.Checked),
		zap.Int("handled", result.Handled),
		zap.Int("errors", len(result.Errors)))
	return nil
}

func (h *RenewalJobHandler) invalidateStats(ctx context.Context) {
	if h.stats == nil {
		return
	}
	if err := h.stats.Invalidate(ctx); err != nil {
		h.logger.Warn("failed to invalidate renewal statistics cache", zap.Error(err))
	}
}
