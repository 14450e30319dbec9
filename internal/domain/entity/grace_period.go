package entity

import (
	"time"
)

// GracePeriod is the window after repeated renewal failures during which the
// subscription stays active pending manual payment
type GracePeriod struct {
	StartedAt time.Time
	ExpiresAt time.Time
}

// IsActive returns true if the grace period is still running at now
func (gp *GracePeriod) IsActive(now time.Time) bool {
	return gp.ExpiresAt.After(now)
}

// IsExpired returns true if the grace period has elapsed at now
func (gp *GracePeriod) IsExpired(now time.Time) bool {
	return !gp.ExpiresAt.After(now)
}

// DaysRemaining returns the number of whole days remaining in the grace period
func (gp *GracePeriod) DaysRemaining(now time.Time) int {
	if gp.IsExpired(now) {
		return 0
	}
	return int(gp.ExpiresAt.Sub(now).Hours() / 24)
}

// HoursRemaining returns the number of whole hours remaining in the grace period
func (gp *GracePeriod) HoursRemaining(now time.Time) int {
	if gp.IsExpired(now) {
		return 0
	}
	return int(gp.ExpiresAt.Sub(now).Hours())
}
