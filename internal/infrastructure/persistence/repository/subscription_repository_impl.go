package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

const subscriptionColumns = `
	id, academy_id, subscriber_id, subscription_code, type, status, payment_status,
	auto_renew, billing_cycle, monthly_price::float8, quarterly_price::float8, yearly_price::float8,
	final_price::float8, currency, payment_token, starts_at, ends_at, next_billing_date,
	last_payment_date, renewal_reminder_sent_at, cancelled_at, cancellation_reason,
	metadata, created_at, updated_at`

// renewableClause matches subscriptions the renewal job may charge
const renewableClause = `status = 'active' AND auto_renew AND next_billing_date IS NOT NULL`

type subscriptionRepositoryImpl struct {
	db querier
}

// NewSubscriptionRepository creates a new subscription repository implementation
func NewSubscriptionRepository(pool *pgxpool.Pool) repository.SubscriptionRepository {
	return &subscriptionRepositoryImpl{db: pool}
}

func (r *subscriptionRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	return r.getOne(ctx, "get subscription", query, id)
}

func (r *subscriptionRepositoryImpl) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, "lock subscription", query, id)
}

func (r *subscriptionRepositoryImpl) getOne(ctx context.Context, op, query string, id uuid.UUID) (*entity.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domainErrors.NewSubscriptionNotFound(id.String())
		}
		return nil, domainErrors.NewDatabaseError(op, err)
	}
	return sub, nil
}

func (r *subscriptionRepositoryImpl) Update(ctx context.Context, sub *entity.Subscription) error {
	query := `
		UPDATE subscriptions SET
			status = $2, payment_status = $3, auto_renew = $4, billing_cycle = $5,
			monthly_price = $6, quarterly_price = $7, yearly_price = $8, final_price = $9,
			payment_token = $10, starts_at = $11, ends_at = $12, next_billing_date = $13,
			last_payment_date = $14, renewal_reminder_sent_at = $15, cancelled_at = $16,
			cancellation_reason = $17, metadata = $18, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		sub.ID, string(sub.Status), string(sub.PaymentStatus), sub.AutoRenew, string(sub.BillingCycle),
		sub.MonthlyPrice, sub.QuarterlyPrice, sub.YearlyPrice, sub.FinalPrice,
		sub.PaymentToken, sub.StartsAt, sub.EndsAt, sub.NextBillingDate,
		sub.LastPaymentDate, sub.RenewalReminderSentAt, sub.CancelledAt,
		sub.CancellationReason, metadataParam(sub.Metadata),
	).Scan(&sub.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return domainErrors.NewSubscriptionNotFound(sub.ID.String())
		}
		return domainErrors.NewDatabaseError("update subscription", err)
	}
	return nil
}

func (r *subscriptionRepositoryImpl) ListDueForRenewal(ctx context.Context, before time.Time, limit int) ([]*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE ` + renewableClause + ` AND next_billing_date <= $1
		ORDER BY next_billing_date
		LIMIT $2
	`
	return r.list(ctx, "list due subscriptions", query, before, limitParam(limit))
}

func (r *subscriptionRepositoryImpl) ListBillingBetween(ctx context.Context, from, to time.Time, unremindedOnly bool) ([]*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE ` + renewableClause + `
			AND next_billing_date >= $1 AND next_billing_date < $2
			AND (NOT $3 OR renewal_reminder_sent_at IS NULL)
		ORDER BY next_billing_date
	`
	return r.list(ctx, "list subscriptions billing between", query, from, to, unremindedOnly)
}

func (r *subscriptionRepositoryImpl) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE subscriptions SET renewal_reminder_sent_at = $2, updated_at = now() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return domainErrors.NewDatabaseError("mark reminder sent", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.NewSubscriptionNotFound(id.String())
	}
	return nil
}

func (r *subscriptionRepositoryImpl) ListGracePeriodExpired(ctx context.Context, now time.Time, limit int) ([]*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active' AND payment_status = 'failed'
			AND metadata ? '` + entity.MetaGracePeriodExpiresAt + `'
			AND (metadata->>'` + entity.MetaGracePeriodExpiresAt + `')::timestamptz <= $1
		ORDER BY (metadata->>'` + entity.MetaGracePeriodExpiresAt + `')::timestamptz
		LIMIT $2
	`
	return r.list(ctx, "list expired grace periods", query, now, limitParam(limit))
}

func (r *subscriptionRepositoryImpl) list(ctx context.Context, op, query string, args ...any) ([]*entity.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domainErrors.NewDatabaseError(op, err)
	}
	defer rows.Close()

	subs := make([]*entity.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, domainErrors.NewDatabaseError(op, err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, domainErrors.NewDatabaseError(op, err)
	}
	return subs, nil
}

func scanSubscription(row pgx.Row) (*entity.Subscription, error) {
	var s entity.Subscription
	var subType, status, payStatus, cycle string
	err := row.Scan(
		&s.ID, &s.AcademyID, &s.SubscriberID, &s.SubscriptionCode, &subType, &status, &payStatus,
		&s.AutoRenew, &cycle, &s.MonthlyPrice, &s.QuarterlyPrice, &s.YearlyPrice,
		&s.FinalPrice, &s.Currency, &s.PaymentToken, &s.StartsAt, &s.EndsAt, &s.NextBillingDate,
		&s.LastPaymentDate, &s.RenewalReminderSentAt, &s.CancelledAt, &s.CancellationReason,
		&s.Metadata, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Type = entity.SubscriptionType(subType)
	s.Status = entity.SubscriptionStatus(status)
	s.PaymentStatus = entity.PaymentStatus(payStatus)
	s.BillingCycle = entity.BillingCycle(cycle)
	if len(s.Metadata) == 0 {
		s.Metadata = nil
	}
	return &s, nil
}

func metadataParam(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// limitParam maps a non-positive limit to NULL, which Postgres treats as no limit
func limitParam(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
