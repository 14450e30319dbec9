package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

const paymentColumns = `
	id, academy_id, subscription_id, subscriber_id, payment_code, amount::float8, currency,
	status, failure_reason, gateway_tx_id, paid_at, created_at, updated_at`

type paymentRepositoryImpl struct {
	db querier
}

// NewPaymentRepository creates a payment repository outside any transaction
func NewPaymentRepository(pool *pgxpool.Pool) repository.PaymentRepository {
	return &paymentRepositoryImpl{db: pool}
}

func (r *paymentRepositoryImpl) Create(ctx context.Context, p *entity.Payment) error {
	query := `
		INSERT INTO subscription_payments (
			id, academy_id, subscription_id, subscriber_id, payment_code, amount, currency,
			status, failure_reason, gateway_tx_id, paid_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.AcademyID, p.SubscriptionID, p.SubscriberID, p.PaymentCode, p.Amount, p.Currency,
		string(p.Status), p.FailureReason, p.GatewayTxID, p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
	return domainErrors.NewDatabaseError("create payment", err)
}

func (r *paymentRepositoryImpl) Update(ctx context.Context, p *entity.Payment) error {
	query := `
		UPDATE subscription_payments
		SET status = $2, failure_reason = $3, gateway_tx_id = $4, paid_at = $5, updated_at = $6
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, p.ID, string(p.Status), p.FailureReason, p.GatewayTxID, p.PaidAt, p.UpdatedAt)
	if err != nil {
		return domainErrors.NewDatabaseError("update payment", err)
	}
	if tag.RowsAffected() == 0 {
		return paymentNotFound(p.ID)
	}
	return nil
}

func (r *paymentRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM subscription_payments WHERE id = $1`
	p, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, paymentNotFound(id)
		}
		return nil, domainErrors.NewDatabaseError("get payment", err)
	}
	return p, nil
}

func (r *paymentRepositoryImpl) GetBySubscriptionID(ctx context.Context, subscriptionID uuid.UUID) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM subscription_payments
		WHERE subscription_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, subscriptionID)
	if err != nil {
		return nil, domainErrors.NewDatabaseError("list payments", err)
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domainErrors.NewDatabaseError("list payments", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domainErrors.NewDatabaseError("list payments", err)
	}
	return payments, nil
}

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var p entity.Payment
	var status string
	err := row.Scan(
		&p.ID, &p.AcademyID, &p.SubscriptionID, &p.SubscriberID, &p.PaymentCode, &p.Amount, &p.Currency,
		&status, &p.FailureReason, &p.GatewayTxID, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = entity.PaymentRecordStatus(status)
	return &p, nil
}

func paymentNotFound(id uuid.UUID) error {
	return &domainErrors.NotFoundError{Entity: "payment", ID: id.String(), Err: domainErrors.ErrPaymentNotFound}
}
