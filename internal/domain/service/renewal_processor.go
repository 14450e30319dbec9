package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

const (
	// RenewalLockPrefix namespaces the per-subscription processing lock
	RenewalLockPrefix = "renewal_processing:"

	// ReasonPaymentDeclined is recorded when the gateway declines without a message
	ReasonPaymentDeclined = "Payment declined"

	// ReasonProcessingError is recorded when the attempt aborted on an unexpected error
	ReasonProcessingError = "Renewal could not be processed"

	// failureRecordTimeout bounds the failure write that follows an aborted attempt
	failureRecordTimeout = 30 * time.Second
)

// RenewalOutcome is the result of a single automatic renewal attempt
type RenewalOutcome string

const (
	OutcomeSucceeded         RenewalOutcome = "succeeded"
	OutcomeFailed            RenewalOutcome = "failed"
	OutcomeErrored           RenewalOutcome = "errored"
	OutcomeSkippedLocked     RenewalOutcome = "skipped_locked"
	OutcomeSkippedIneligible RenewalOutcome = "skipped_ineligible"
)

// IsSkipped returns true if no charge was attempted
func (o RenewalOutcome) IsSkipped() bool {
	return o == OutcomeSkippedLocked || o == OutcomeSkippedIneligible
}

// RenewalConfig holds renewal policy knobs
type RenewalConfig struct {
	MaxRenewalAttempts int
	GracePeriodDays    int
	LockTTL            time.Duration
	RenewalWindow      time.Duration
	BatchLimit         int
}

// DefaultRenewalConfig returns the production defaults
func DefaultRenewalConfig() RenewalConfig {
	return RenewalConfig{
		MaxRenewalAttempts: 3,
		GracePeriodDays:    3,
		LockTTL:            time.Hour,
		RenewalWindow:      DefaultRenewalWindow,
		BatchLimit:         500,
	}
}

func (c RenewalConfig) withDefaults() RenewalConfig {
	d := DefaultRenewalConfig()
	if c.MaxRenewalAttempts <= 0 {
		c.MaxRenewalAttempts = d.MaxRenewalAttempts
	}
	if c.GracePeriodDays <= 0 {
		c.GracePeriodDays = d.GracePeriodDays
	}
	if c.LockTTL <= 0 {
		c.LockTTL = d.LockTTL
	}
	if c.RenewalWindow <= 0 {
		c.RenewalWindow = d.RenewalWindow
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = d.BatchLimit
	}
	return c
}

// RenewalError describes one subscription that failed during a batch run
type RenewalError struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	Error          string    `json:"error"`
}

// BatchResult summarizes a ProcessDueRenewals run
type BatchResult struct {
	Processed  int            `json:"processed"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Errors     []RenewalError `json:"errors"`
}

// ProcessorOption customizes a RenewalProcessor
type ProcessorOption func(*RenewalProcessor)

// WithErrorReporter sets the tracker that receives critical errors
func WithErrorReporter(r ErrorReporter) ProcessorOption {
	return func(p *RenewalProcessor) { p.reporter = r }
}

// WithRenewalObserver sets the metrics observer
func WithRenewalObserver(o RenewalObserver) ProcessorOption {
	return func(p *RenewalProcessor) { p.observer = o }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ProcessorOption {
	return func(p *RenewalProcessor) { p.logger = l }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *RenewalProcessor) { p.now = now }
}

// RenewalProcessor drives the automatic and manual renewal state machine
type RenewalProcessor struct {
	uow         repository.UnitOfWork
	subs        repository.SubscriptionRepository
	locker      Locker
	gateway     PaymentGateway
	notifier    *RenewalNotificationService
	reporter    ErrorReporter
	observer    RenewalObserver
	eligibility EligibilityChecker
	cfg         RenewalConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewRenewalProcessor creates a new renewal processor
func NewRenewalProcessor(
	uow repository.UnitOfWork,
	subs repository.SubscriptionRepository,
	locker Locker,
	gateway PaymentGateway,
	notifier *RenewalNotificationService,
	cfg RenewalConfig,
	opts ...ProcessorOption,
) *RenewalProcessor {
	cfg = cfg.withDefaults()
	p := &RenewalProcessor{
		uow:         uow,
		subs:        subs,
		locker:      locker,
		gateway:     gateway,
		notifier:    notifier,
		reporter:    noopReporter{},
		observer:    noopObserver{},
		eligibility: NewEligibilityChecker(cfg.RenewalWindow),
		cfg:         cfg,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LockKey returns the distributed lock key for a subscription
func LockKey(id uuid.UUID) string {
	return RenewalLockPrefix + id.String()
}

// ProcessRenewal attempts one automatic renewal and returns true only if the
// charge succeeded and the subscription was extended.
func (p *RenewalProcessor) ProcessRenewal(ctx context.Context, sub *entity.Subscription) bool {
	outcome, _ := p.Process(ctx, sub)
	return outcome == OutcomeSucceeded
}

// Process attempts one automatic renewal and reports its outcome. The returned
// error is informational: it carries the cause of an aborted attempt whose
// failure has already been recorded.
func (p *RenewalProcessor) Process(ctx context.Context, sub *entity.Subscription) (RenewalOutcome, error) {
	start := p.now()
	log := p.logger.With(zap.String("subscription_id", sub.ID.String()))

	handle, ok, err := p.locker.TryAcquire(ctx, LockKey(sub.ID), p.cfg.LockTTL)
	if err != nil {
		log.Error("failed to acquire renewal lock", zap.Error(err))
		return p.finish(OutcomeSkippedLocked, sub.Type, start), nil
	}
	if !ok {
		log.Info("renewal already in progress, skipping")
		return p.finish(OutcomeSkippedLocked, sub.Type, start), nil
	}
	defer func() {
		if err := handle.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release renewal lock", zap.Error(err))
		}
	}()

	if reason := p.eligibility.IneligibilityReason(sub, start); reason != "" {
		log.Info("subscription not eligible for renewal", zap.String("reason", reason))
		return p.finish(OutcomeSkippedIneligible, sub.Type, start), nil
	}

	att, err := p.attempt(ctx, sub.ID)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			log.Warn("subscription disappeared before renewal", zap.Error(err))
			return p.finish(OutcomeErrored, sub.Type, start), err
		}
		p.logUnexpected(ctx, log, sub, err)
		// the attempt may have aborted because ctx was cancelled; the failure must still be written
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureRecordTimeout)
		recErr := p.recordFailure(recCtx, sub.ID, ReasonProcessingError)
		cancel()
		if recErr != nil {
			log.Error("failed to record renewal failure", zap.Error(recErr))
			p.reporter.CaptureError(ctx, recErr, map[string]string{
				"subscription_id": sub.ID.String(),
				"operation":       "record_renewal_failure",
			})
		}
		return p.finish(OutcomeErrored, sub.Type, start), err
	}

	switch att.outcome {
	case OutcomeSucceeded:
		log.Info("subscription renewed",
			zap.Float64("amount", att.amount),
			zap.String("payment_code", att.payment.PaymentCode))
		p.notifier.NotifyRenewalSucceeded(ctx, att.sub, att.amount)
	case OutcomeFailed:
		p.notifier.NotifyPaymentFailed(ctx, att.sub, att.reason)
	case OutcomeSkippedIneligible:
		log.Info("subscription no longer eligible for renewal")
	}
	return p.finish(att.outcome, sub.Type, start), nil
}

type attemptResult struct {
	outcome RenewalOutcome
	sub     *entity.Subscription
	payment *entity.Payment
	amount  float64
	reason  string
}

// attempt runs the locked, transactional part of a renewal. Business failures
// commit with the failure recorded; any returned error rolls everything back.
func (p *RenewalProcessor) attempt(ctx context.Context, id uuid.UUID) (*attemptResult, error) {
	var res attemptResult
	err := p.uow.WithinTransaction(ctx, func(ctx context.Context, repos repository.TxRepositories) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("renewal attempt panicked: %v", r)
			}
		}()

		now := p.now()
		sub, err := repos.Subscriptions().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.eligibility.CanProcessRenewal(sub, now) {
			res.outcome = OutcomeSkippedIneligible
			return nil
		}

		amount := sub.CalculateRenewalPrice()
		payment := entity.NewRenewalPayment(sub, amount, now)
		if err := repos.Payments().Create(ctx, payment); err != nil {
			return fmt.Errorf("create renewal payment: %w", err)
		}

		result, err := p.gateway.ProcessSubscriptionRenewal(ctx, payment, sub)
		if err != nil {
			return fmt.Errorf("charge renewal payment: %w", err)
		}
		if result == nil {
			return errors.New("charge renewal payment: empty gateway result")
		}

		res.sub, res.payment, res.amount = sub, payment, amount
		if result.Success {
			payment.MarkPaid(result.TransactionID, now)
			if err := repos.Payments().Update(ctx, payment); err != nil {
				return fmt.Errorf("mark payment paid: %w", err)
			}
			p.applySuccessfulRenewal(sub, now)
			if err := repos.Subscriptions().Update(ctx, sub); err != nil {
				return fmt.Errorf("extend subscription: %w", err)
			}
			res.outcome = OutcomeSucceeded
			return nil
		}

		reason := result.Error
		if reason == "" {
			reason = ReasonPaymentDeclined
		}
		payment.MarkFailed(reason, now)
		if err := repos.Payments().Update(ctx, payment); err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}
		p.applyRenewalFailure(sub, reason, now)
		if err := repos.Subscriptions().Update(ctx, sub); err != nil {
			return fmt.Errorf("record renewal failure: %w", err)
		}
		res.outcome = OutcomeFailed
		res.reason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// recordFailure applies the failure transition in its own transaction after
// an aborted attempt was rolled back.
func (p *RenewalProcessor) recordFailure(ctx context.Context, id uuid.UUID, reason string) error {
	var sub *entity.Subscription
	err := p.uow.WithinTransaction(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		locked, err := repos.Subscriptions().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		p.applyRenewalFailure(locked, reason, p.now())
		if err := repos.Subscriptions().Update(ctx, locked); err != nil {
			return err
		}
		sub = locked
		return nil
	})
	if err != nil {
		return err
	}
	p.notifier.NotifyPaymentFailed(ctx, sub, reason)
	return nil
}

// applySuccessfulRenewal extends the paid-through and billing dates by one
// cycle and clears the retry bookkeeping.
func (p *RenewalProcessor) applySuccessfulRenewal(sub *entity.Subscription, now time.Time) {
	nextBilling := sub.CalculateNextBillingDate(now)
	base := now
	if sub.EndsAt != nil {
		base = *sub.EndsAt
	}
	endsAt := sub.BillingCycle.CalculateEndDate(base)

	failure := sub.FailureState()
	failure.ClearFailures()
	sub.SetFailureState(failure)

	sub.Status = entity.StatusActive
	sub.PaymentStatus = entity.PaymentStatusPaid
	sub.LastPaymentDate = &now
	sub.NextBillingDate = &nextBilling
	sub.EndsAt = &endsAt
	sub.RenewalReminderSentAt = nil
	sub.UpdatedAt = now
}

// applyRenewalFailure records a failed attempt. While the subscription is
// still paid-through and attempts remain, only the payment status changes.
// Otherwise a grace period is opened. The subscription is never cancelled here.
func (p *RenewalProcessor) applyRenewalFailure(sub *entity.Subscription, reason string, now time.Time) {
	failure := sub.FailureState()
	count := failure.RecordFailure(reason, now)
	log := p.logger.With(
		zap.String("subscription_id", sub.ID.String()),
		zap.Int("failed_count", count),
		zap.String("reason", reason))

	sub.PaymentStatus = entity.PaymentStatusFailed
	sub.UpdatedAt = now

	if !sub.HasExpired(now) && count < p.cfg.MaxRenewalAttempts {
		sub.SetFailureState(failure)
		log.Warn("renewal attempt failed, will retry")
		return
	}

	failure.StartGracePeriod(now, p.cfg.GracePeriodDays)
	sub.Status = entity.StatusActive
	sub.SetFailureState(failure)
	log.Warn("renewal failed, subscription in grace period",
		zap.Timep("grace_period_expires_at", failure.GracePeriodExpiresAt))
}

// ManualRenewal extends a subscription after an out-of-band payment. A new
// billing cycle may be supplied to switch plans at the same time.
func (p *RenewalProcessor) ManualRenewal(ctx context.Context, id uuid.UUID, amount float64, newCycle *entity.BillingCycle) (*entity.Subscription, error) {
	if amount < 0 {
		return nil, domainErrors.NewValidationError("amount", "must not be negative", domainErrors.ErrInvalidAmount)
	}
	if newCycle != nil && !newCycle.IsValid() {
		return nil, domainErrors.NewValidationError("billing_cycle", newCycle.String(), domainErrors.ErrInvalidBillingCycle)
	}

	var renewed *entity.Subscription
	err := p.uow.WithinTransaction(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		sub, err := repos.Subscriptions().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !sub.CanRenew() {
			return &domainErrors.InvalidStateError{
				Operation: "renew",
				Current:   string(sub.Status),
				Required:  "active or paused",
			}
		}
		if newCycle != nil {
			sub.BillingCycle = *newCycle
		}
		p.applySuccessfulRenewal(sub, p.now())
		if err := repos.Subscriptions().Update(ctx, sub); err != nil {
			return err
		}
		renewed = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("subscription manually renewed",
		zap.String("subscription_id", id.String()),
		zap.Float64("amount", amount),
		zap.String("billing_cycle", renewed.BillingCycle.String()))
	p.notifier.NotifyRenewalSucceeded(ctx, renewed, amount)
	return renewed, nil
}

// Reactivate restarts a cancelled subscription from now with a fresh term
func (p *RenewalProcessor) Reactivate(ctx context.Context, id uuid.UUID, amount float64) (*entity.Subscription, error) {
	if amount < 0 {
		return nil, domainErrors.NewValidationError("amount", "must not be negative", domainErrors.ErrInvalidAmount)
	}

	var reactivated *entity.Subscription
	err := p.uow.WithinTransaction(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		sub, err := repos.Subscriptions().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !sub.IsCancelled() {
			return &domainErrors.InvalidStateError{
				Operation: "reactivate",
				Current:   string(sub.Status),
				Required:  string(entity.StatusCancelled),
			}
		}

		now := p.now()
		endsAt := sub.BillingCycle.CalculateEndDate(now)
		nextBilling := sub.BillingCycle.NextBillingDate(now)
		sub.StartsAt = &now
		sub.EndsAt = &endsAt
		sub.NextBillingDate = &nextBilling
		sub.LastPaymentDate = &now
		sub.Status = entity.StatusActive
		sub.PaymentStatus = entity.PaymentStatusPaid
		sub.AutoRenew = true
		sub.CancelledAt = nil
		sub.CancellationReason = ""
		sub.RenewalReminderSentAt = nil
		sub.UpdatedAt = now
		if err := repos.Subscriptions().Update(ctx, sub); err != nil {
			return err
		}
		reactivated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("subscription reactivated",
		zap.String("subscription_id", id.String()),
		zap.Float64("amount", amount))
	p.notifier.NotifyRenewalSucceeded(ctx, reactivated, amount)
	return reactivated, nil
}

// ListDue returns up to BatchLimit subscriptions billed within the next day
func (p *RenewalProcessor) ListDue(ctx context.Context) ([]*entity.Subscription, error) {
	due, err := p.subs.ListDueForRenewal(ctx, p.now().Add(24*time.Hour), p.cfg.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("list due renewals: %w", err)
	}
	return due, nil
}

// ProcessDueRenewals attempts every subscription billed within the next day
func (p *RenewalProcessor) ProcessDueRenewals(ctx context.Context) (*BatchResult, error) {
	due, err := p.ListDue(ctx)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Errors: []RenewalError{}}
	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++
		outcome, err := p.Process(ctx, sub)
		switch {
		case outcome == OutcomeSucceeded:
			result.Successful++
		case outcome.IsSkipped():
			result.Skipped++
		default:
			result.Failed++
		}
		if err != nil {
			result.Errors = append(result.Errors, RenewalError{SubscriptionID: sub.ID, Error: err.Error()})
		}
	}

	p.logger.Info("due renewals processed",
		zap.Int("processed", result.Processed),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (p *RenewalProcessor) logUnexpected(ctx context.Context, log *zap.Logger, sub *entity.Subscription, err error) {
	if domainErrors.IsDatabase(err) {
		log.Error("database error during renewal", zap.Error(err))
		return
	}
	log.Error("unexpected error during renewal", zap.Error(err))
	p.reporter.CaptureError(ctx, err, map[string]string{
		"subscription_id": sub.ID.String(),
		"academy_id":      fmt.Sprint(sub.AcademyID),
		"operation":       "process_renewal",
	})
}

func (p *RenewalProcessor) finish(outcome RenewalOutcome, subType entity.SubscriptionType, start time.Time) RenewalOutcome {
	p.observer.ObserveRenewal(outcome, subType, p.now().Sub(start))
	return outcome
}
