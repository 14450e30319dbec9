package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

// ReminderRule selects subscriptions billing a given number of days out.
// Deduplicated rules skip subscriptions already reminded and stamp the ones they notify.
type ReminderRule struct {
	DaysBefore  int
	Deduplicate bool
}

// DefaultReminderRules sends a deduplicated reminder a week out and a final one three days out
var DefaultReminderRules = []ReminderRule{
	{DaysBefore: 7, Deduplicate: true},
	{DaysBefore: 3, Deduplicate: false},
}

const (
	reminderErrorDatabase     = "database"
	reminderErrorNotification = "notification"
)

// ReminderError describes a reminder that could not be delivered
type ReminderError struct {
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	DaysBefore     int        `json:"days_before"`
	ErrorType      string     `json:"error_type"`
	Message        string     `json:"message"`
}

// ReminderResult summarizes a reminder run
type ReminderResult struct {
	Sent    int             `json:"sent"`
	Skipped int             `json:"skipped"`
	Errors  []ReminderError `json:"errors"`
}

// RenewalReminderService notifies subscribers ahead of their next charge
type RenewalReminderService struct {
	subs     repository.SubscriptionRepository
	notifier *RenewalNotificationService
	observer RenewalObserver
	rules    []ReminderRule
	logger   *zap.Logger
	now      func() time.Time
}

// NewRenewalReminderService creates a new reminder service
func NewRenewalReminderService(
	subs repository.SubscriptionRepository,
	notifier *RenewalNotificationService,
	observer RenewalObserver,
	logger *zap.Logger,
) *RenewalReminderService {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenewalReminderService{
		subs:     subs,
		notifier: notifier,
		observer: observer,
		rules:    DefaultReminderRules,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides time.Now
func (s *RenewalReminderService) SetClock(now func() time.Time) {
	s.now = now
}

// SendRenewalReminders runs every reminder rule. A failing subscription never
// stops the run; its error is collected in the result.
func (s *RenewalReminderService) SendRenewalReminders(ctx context.Context) (*ReminderResult, error) {
	result := &ReminderResult{Errors: []ReminderError{}}
	today := startOfDay(s.now())

	for _, rule := range s.rules {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.runRule(ctx, rule, today, result)
	}

	s.logger.Info("renewal reminders processed",
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

func (s *RenewalReminderService) runRule(ctx context.Context, rule ReminderRule, today time.Time, result *ReminderResult) {
	from := today.AddDate(0, 0, rule.DaysBefore)
	to := from.AddDate(0, 0, 1)

	subs, err := s.subs.ListBillingBetween(ctx, from, to, rule.Deduplicate)
	if err != nil {
		s.logger.Error("failed to list subscriptions for reminders",
			zap.Int("days_before", rule.DaysBefore), zap.Error(err))
		result.Errors = append(result.Errors, ReminderError{
			DaysBefore: rule.DaysBefore,
			ErrorType:  reminderErrorDatabase,
			Message:    err.Error(),
		})
		return
	}

	for _, sub := range subs {
		id := sub.ID
		err := s.notifier.SendReminder(ctx, sub, rule.DaysBefore)
		if errors.Is(err, ErrNotificationSkipped) {
			result.Skipped++
			s.observer.ObserveReminder(rule.DaysBefore, false)
			continue
		}
		if err != nil {
			s.logger.Warn("failed to send renewal reminder",
				zap.String("subscription_id", id.String()),
				zap.Int("days_before", rule.DaysBefore),
				zap.Error(err))
			result.Errors = append(result.Errors, ReminderError{
				SubscriptionID: &id,
				DaysBefore:     rule.DaysBefore,
				ErrorType:      classifyReminderError(err),
				Message:        err.Error(),
			})
			s.observer.ObserveReminder(rule.DaysBefore, false)
			continue
		}
		result.Sent++
		s.observer.ObserveReminder(rule.DaysBefore, true)

		if !rule.Deduplicate {
			continue
		}
		if err := s.subs.MarkReminderSent(ctx, id, s.now()); err != nil {
			s.logger.Error("failed to mark reminder sent",
				zap.String("subscription_id", id.String()), zap.Error(err))
			result.Errors = append(result.Errors, ReminderError{
				SubscriptionID: &id,
				DaysBefore:     rule.DaysBefore,
				ErrorType:      reminderErrorDatabase,
				Message:        err.Error(),
			})
		}
	}
}

func classifyReminderError(err error) string {
	if domainErrors.IsDatabase(err) {
		return reminderErrorDatabase
	}
	return reminderErrorNotification
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
