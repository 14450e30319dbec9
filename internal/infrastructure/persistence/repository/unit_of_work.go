package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

// UnitOfWork runs renewal writes in a single pgx transaction
type UnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork creates a new unit of work over the pool
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

var _ repository.UnitOfWork = (*UnitOfWork)(nil)

// WithinTransaction commits when fn returns nil and rolls back otherwise.
// The error from fn is returned unchanged.
func (u *UnitOfWork) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos repository.TxRepositories) error) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domainErrors.NewDatabaseError("begin transaction", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(ctx, txRepositories{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return domainErrors.NewDatabaseError("commit transaction", err)
	}
	return nil
}

type txRepositories struct {
	tx pgx.Tx
}

func (t txRepositories) Subscriptions() repository.SubscriptionRepository {
	return &subscriptionRepositoryImpl{db: t.tx}
}

func (t txRepositories) Payments() repository.PaymentRepository {
	return &paymentRepositoryImpl{db: t.tx}
}
