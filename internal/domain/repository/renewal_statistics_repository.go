package repository

import (
	"context"
	"time"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

// RenewalFilter scopes a statistics query. AcademyID 0 means every academy.
type RenewalFilter struct {
	AcademyID int64
	Since     time.Time
	Until     time.Time
}

// RenewalStatisticsRepository defines read-only renewal reporting queries
type RenewalStatisticsRepository interface {
	// ListFailedRenewals retrieves cancelled subscriptions with a failed payment
	// updated inside the filter window, newest first
	ListFailedRenewals(ctx context.Context, filter RenewalFilter) ([]*entity.Subscription, error)

	// CountRenewalsByType aggregates successful and failed renewals inside the window
	// and subscriptions billing between Until and upcomingUntil, grouped by subscription type
	CountRenewalsByType(ctx context.Context, filter RenewalFilter, upcomingUntil time.Time) ([]entity.RenewalTypeCounts, error)
}
