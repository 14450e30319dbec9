package service

import (
	"time"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

// DefaultRenewalWindow is how far ahead of the billing date a renewal may be attempted
const DefaultRenewalWindow = 3 * 24 * time.Hour

// Ineligibility reasons, used for logging
const (
	ReasonNotActive          = "status_not_active"
	ReasonAutoRenewOff       = "auto_renew_disabled"
	ReasonCycleNotRenewable  = "billing_cycle_not_renewable"
	ReasonOutsideRenewWindow = "outside_renewal_window"
)

// EligibilityChecker decides whether a subscription may be renewed right now
type EligibilityChecker struct {
	Window time.Duration
}

// NewEligibilityChecker creates a checker with the given pre-billing window
func NewEligibilityChecker(window time.Duration) EligibilityChecker {
	if window <= 0 {
		window = DefaultRenewalWindow
	}
	return EligibilityChecker{Window: window}
}

// CanProcessRenewal returns true if the subscription is eligible for automatic renewal at now
func (c EligibilityChecker) CanProcessRenewal(sub *entity.Subscription, now time.Time) bool {
	return c.IneligibilityReason(sub, now) == ""
}

// IneligibilityReason returns why the subscription is not eligible, or "" if it is
func (c EligibilityChecker) IneligibilityReason(sub *entity.Subscription, now time.Time) string {
	switch {
	case sub.Status != entity.StatusActive:
		return ReasonNotActive
	case !sub.AutoRenew:
		return ReasonAutoRenewOff
	case !sub.BillingCycle.SupportsAutoRenewal():
		return ReasonCycleNotRenewable
	case sub.NextBillingDate != nil && sub.NextBillingDate.After(now.Add(c.Window)):
		return ReasonOutsideRenewWindow
	}
	return ""
}

// CanProcessRenewal checks eligibility with the default window
func CanProcessRenewal(sub *entity.Subscription, now time.Time) bool {
	return NewEligibilityChecker(DefaultRenewalWindow).CanProcessRenewal(sub, now)
}
