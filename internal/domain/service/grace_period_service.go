package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

var ErrGracePeriodNotActive = errors.New("grace period is not active")

// GraceExpiryHandler decides what happens to a subscription whose grace period ran out
type GraceExpiryHandler interface {
	HandleExpiredGracePeriod(ctx context.Context, sub *entity.Subscription, gracePeriod *entity.GracePeriod) error
}

// LoggingGraceExpiryHandler only records the expiry. Subscriptions stay active.
type LoggingGraceExpiryHandler struct {
	logger *zap.Logger
}

// NewLoggingGraceExpiryHandler creates the default expiry handler
func NewLoggingGraceExpiryHandler(logger *zap.Logger) *LoggingGraceExpiryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingGraceExpiryHandler{logger: logger}
}

func (h *LoggingGraceExpiryHandler) HandleExpiredGracePeriod(_ context.Context, sub *entity.Subscription, gp *entity.GracePeriod) error {
	h.logger.Warn("grace period expired",
		zap.String("subscription_id", sub.ID.String()),
		zap.Int64("academy_id", sub.AcademyID),
		zap.Time("grace_period_expires_at", gp.ExpiresAt),
		zap.Int("renewal_failed_count", sub.FailureState().FailedCount))
	return nil
}

// GraceExpiryError describes a subscription whose expiry handler failed
type GraceExpiryError struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	Error          string    `json:"error"`
}

// GraceExpiryResult summarizes a CheckGracePeriodExpiry run
type GraceExpiryResult struct {
	Checked int                `json:"checked"`
	Handled int                `json:"handled"`
	Errors  []GraceExpiryError `json:"errors"`
}

// GracePeriodService tracks grace windows opened by failed renewals
type GracePeriodService struct {
	subs    repository.SubscriptionRepository
	handler GraceExpiryHandler
	limit   int
	logger  *zap.Logger
	now     func() time.Time
}

// NewGracePeriodService creates a new grace period service
func NewGracePeriodService(subs repository.SubscriptionRepository, handler GraceExpiryHandler, limit int, logger *zap.Logger) *GracePeriodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		handler = NewLoggingGraceExpiryHandler(logger)
	}
	if limit <= 0 {
		limit = 500
	}
	return &GracePeriodService{
		subs:    subs,
		handler: handler,
		limit:   limit,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides time.Now
func (s *GracePeriodService) SetClock(now func() time.Time) {
	s.now = now
}

// GetGracePeriodStatus returns the open grace window of a subscription
func (s *GracePeriodService) GetGracePeriodStatus(ctx context.Context, subscriptionID uuid.UUID) (*entity.GracePeriod, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	failure := sub.FailureState()
	gp := failure.GracePeriod()
	if gp == nil || !gp.IsActive(s.now()) {
		return nil, ErrGracePeriodNotActive
	}
	return gp, nil
}

// CheckGracePeriodExpiry hands every subscription still failing payment after its
// grace window expired to the expiry handler
func (s *GracePeriodService) CheckGracePeriodExpiry(ctx context.Context) (*GraceExpiryResult, error) {
	now := s.now()
	expired, err := s.subs.ListGracePeriodExpired(ctx, now, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired grace periods: %w", err)
	}

	result := &GraceExpiryResult{Errors: []GraceExpiryError{}}
	for _, sub := range expired {
		failure := sub.FailureState()
		gp := failure.GracePeriod()
		if gp == nil || !gp.IsExpired(now) || sub.PaymentStatus != entity.PaymentStatusFailed {
			continue
		}
		result.Checked++
		if err := s.handler.HandleExpiredGracePeriod(ctx, sub, gp); err != nil {
			s.logger.Error("grace expiry handler failed",
				zap.String("subscription_id", sub.ID.String()), zap.Error(err))
			result.Errors = append(result.Errors, GraceExpiryError{SubscriptionID: sub.ID, Error: err.Error()})
			continue
		}
		result.Handled++
	}
	return result, nil
}
