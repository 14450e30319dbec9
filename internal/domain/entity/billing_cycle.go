package entity

import (
	"time"
)

// BillingCycle describes how often a subscription is charged
type BillingCycle string

const (
	BillingMonthly   BillingCycle = "monthly"
	BillingQuarterly BillingCycle = "quarterly"
	BillingYearly    BillingCycle = "yearly"
	BillingLifetime  BillingCycle = "lifetime"
)

// lifetimeYears is how far a lifetime cycle projects its end date
const lifetimeYears = 100

// ParseBillingCycle validates a raw billing cycle value
func ParseBillingCycle(raw string) (BillingCycle, bool) {
	c := BillingCycle(raw)
	switch c {
	case BillingMonthly, BillingQuarterly, BillingYearly, BillingLifetime:
		return c, true
	default:
		return "", false
	}
}

// SupportsAutoRenewal returns true if the cycle is recurring
func (c BillingCycle) SupportsAutoRenewal() bool {
	switch c {
	case BillingMonthly, BillingQuarterly, BillingYearly:
		return true
	default:
		return false
	}
}

// Months returns the cadence in months, or 0 for non-recurring cycles
func (c BillingCycle) Months() int {
	switch c {
	case BillingMonthly:
		return 1
	case BillingQuarterly:
		return 3
	case BillingYearly:
		return 12
	default:
		return 0
	}
}

// CalculateEndDate projects the paid-through date of one period starting at from
func (c BillingCycle) CalculateEndDate(from time.Time) time.Time {
	if c == BillingLifetime {
		return from.AddDate(lifetimeYears, 0, 0)
	}
	return from.AddDate(0, c.Months(), 0)
}

// NextBillingDate returns the next charge date after from. Lifetime cycles never bill again.
func (c BillingCycle) NextBillingDate(from time.Time) time.Time {
	if !c.SupportsAutoRenewal() {
		return from
	}
	return from.AddDate(0, c.Months(), 0)
}

// String returns the string representation of the billing cycle
func (c BillingCycle) String() string {
	return string(c)
}

// IsValid returns true if the cycle is one of the known values
func (c BillingCycle) IsValid() bool {
	_, ok := ParseBillingCycle(string(c))
	return ok
}
