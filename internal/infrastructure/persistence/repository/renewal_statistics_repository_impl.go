package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	domainRepo "github.com/bivex/subscription-renewals/internal/domain/repository"
)

// RenewalStatisticsRepositoryImpl implements RenewalStatisticsRepository using pgxpool
type RenewalStatisticsRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewRenewalStatisticsRepository creates a new renewal statistics repository implementation
func NewRenewalStatisticsRepository(pool *pgxpool.Pool) domainRepo.RenewalStatisticsRepository {
	return &RenewalStatisticsRepositoryImpl{pool: pool}
}

func (r *RenewalStatisticsRepositoryImpl) ListFailedRenewals(ctx context.Context, filter domainRepo.RenewalFilter) ([]*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE ($1::bigint = 0 OR academy_id = $1)
			AND status = 'cancelled' AND payment_status = 'failed'
			AND updated_at >= $2 AND updated_at <= $3
		ORDER BY updated_at DESC
	`
	subs := &subscriptionRepositoryImpl{db: r.pool}
	return subs.list(ctx, "list failed renewals", query, filter.AcademyID, filter.Since, filter.Until)
}

func (r *RenewalStatisticsRepositoryImpl) CountRenewalsByType(ctx context.Context, filter domainRepo.RenewalFilter, upcomingUntil time.Time) ([]entity.RenewalTypeCounts, error) {
	query := `
		SELECT
			type,
			COUNT(*) FILTER (WHERE payment_status = 'paid' AND last_payment_date >= $2 AND last_payment_date <= $3),
			COUNT(*) FILTER (WHERE status = 'cancelled' AND payment_status = 'failed' AND updated_at >= $2 AND updated_at <= $3),
			COALESCE(SUM(final_price) FILTER (WHERE payment_status = 'paid' AND last_payment_date >= $2 AND last_payment_date <= $3), 0)::float8,
			COUNT(*) FILTER (WHERE ` + renewableClause + ` AND next_billing_date > $3 AND next_billing_date <= $4)
		FROM subscriptions
		WHERE $1::bigint = 0 OR academy_id = $1
		GROUP BY type
		ORDER BY type
	`
	rows, err := r.pool.Query(ctx, query, filter.AcademyID, filter.Since, filter.Until, upcomingUntil)
	if err != nil {
		return nil, domainErrors.NewDatabaseError("count renewals by type", err)
	}
	defer rows.Close()

	counts := make([]entity.RenewalTypeCounts, 0, len(entity.SubscriptionTypes))
	for rows.Next() {
		var c entity.RenewalTypeCounts
		var subType string
		if err := rows.Scan(&subType, &c.Successful, &c.Failed, &c.Revenue, &c.Upcoming); err != nil {
			return nil, domainErrors.NewDatabaseError("count renewals by type", err)
		}
		c.Type = entity.SubscriptionType(subType)
		if c.Successful+c.Failed+c.Upcoming == 0 {
			continue
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domainErrors.NewDatabaseError("count renewals by type", err)
	}
	return counts, nil
}
