package entity

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	StatusPending   SubscriptionStatus = "pending"
	StatusActive    SubscriptionStatus = "active"
	StatusPaused    SubscriptionStatus = "paused"
	StatusCancelled SubscriptionStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// SubscriptionType discriminates the kind of program a subscription pays for
type SubscriptionType string

const (
	TypeQuran    SubscriptionType = "quran"
	TypeAcademic SubscriptionType = "academic"
	TypeCourse   SubscriptionType = "course"
)

// SubscriptionTypes lists every known subscription type
var SubscriptionTypes = []SubscriptionType{TypeQuran, TypeAcademic, TypeCourse}

type Subscription struct {
	ID               uuid.UUID
	AcademyID        int64
	SubscriberID     uuid.UUID
	SubscriptionCode string
	Type             SubscriptionType
	Status           SubscriptionStatus
	PaymentStatus    PaymentStatus
	AutoRenew        bool
	BillingCycle     BillingCycle

	MonthlyPrice   float64
	QuarterlyPrice *float64
	YearlyPrice    *float64
	FinalPrice     float64
	Currency       string
	PaymentToken   string

	StartsAt              *time.Time
	EndsAt                *time.Time
	NextBillingDate       *time.Time
	LastPaymentDate       *time.Time
	RenewalReminderSentAt *time.Time
	CancelledAt           *time.Time
	CancellationReason    string

	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubscription creates a new active subscription starting now
func NewSubscription(academyID int64, subscriberID uuid.UUID, subType SubscriptionType, cycle BillingCycle, monthlyPrice float64, currency string) *Subscription {
	now := time.Now()
	endsAt := cycle.CalculateEndDate(now)
	nextBilling := cycle.NextBillingDate(now)
	return &Subscription{
		ID:              uuid.New(),
		AcademyID:       academyID,
		SubscriberID:    subscriberID,
		Type:            subType,
		Status:          StatusActive,
		PaymentStatus:   PaymentStatusPaid,
		AutoRenew:       cycle.SupportsAutoRenewal(),
		BillingCycle:    cycle,
		MonthlyPrice:    monthlyPrice,
		FinalPrice:      monthlyPrice * float64(max(cycle.Months(), 1)),
		Currency:        currency,
		StartsAt:        &now,
		EndsAt:          &endsAt,
		NextBillingDate: &nextBilling,
		LastPaymentDate: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsActive returns true if the subscription status is active
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// IsCancelled returns true if the subscription has been cancelled
func (s *Subscription) IsCancelled() bool {
	return s.Status == StatusCancelled
}

// CanRenew returns true if a manual renewal is allowed in the current state
func (s *Subscription) CanRenew() bool {
	return s.Status == StatusActive || s.Status == StatusPaused
}

// HasExpired returns true if the paid-through date is unset or not in the future
func (s *Subscription) HasExpired(now time.Time) bool {
	return s.EndsAt == nil || !s.EndsAt.After(now)
}

// CalculateRenewalPrice returns the charge for one period of the current billing cycle
func (s *Subscription) CalculateRenewalPrice() float64 {
	switch s.BillingCycle {
	case BillingMonthly:
		return s.MonthlyPrice
	case BillingQuarterly:
		if s.QuarterlyPrice != nil {
			return *s.QuarterlyPrice
		}
		return s.MonthlyPrice * 3
	case BillingYearly:
		if s.YearlyPrice != nil {
			return *s.YearlyPrice
		}
		return s.MonthlyPrice * 12
	default:
		return s.FinalPrice
	}
}

// CalculateNextBillingDate projects the next charge date from the current
// billing date, falling back to the paid-through date and then to now.
func (s *Subscription) CalculateNextBillingDate(now time.Time) time.Time {
	base := now
	switch {
	case s.NextBillingDate != nil:
		base = *s.NextBillingDate
	case s.EndsAt != nil:
		base = *s.EndsAt
	}
	return s.BillingCycle.NextBillingDate(base)
}

// FailureState returns the typed renewal failure bookkeeping
func (s *Subscription) FailureState() RenewalFailureState {
	return FailureStateFromMetadata(s.Metadata)
}

// SetFailureState writes the failure bookkeeping back into the metadata map
func (s *Subscription) SetFailureState(f RenewalFailureState) {
	s.Metadata = f.ApplyToMetadata(s.Metadata)
	if len(s.Metadata) == 0 {
		s.Metadata = nil
	}
}

// Clone returns a deep copy of the subscription
func (s *Subscription) Clone() *Subscription {
	c := *s
	c.QuarterlyPrice = clonePtr(s.QuarterlyPrice)
	c.YearlyPrice = clonePtr(s.YearlyPrice)
	c.StartsAt = clonePtr(s.StartsAt)
	c.EndsAt = clonePtr(s.EndsAt)
	c.NextBillingDate = clonePtr(s.NextBillingDate)
	c.LastPaymentDate = clonePtr(s.LastPaymentDate)
	c.RenewalReminderSentAt = clonePtr(s.RenewalReminderSentAt)
	c.CancelledAt = clonePtr(s.CancelledAt)
	if s.Metadata != nil {
		c.Metadata = maps.Clone(s.Metadata)
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
