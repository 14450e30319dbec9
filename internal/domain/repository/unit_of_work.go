package repository

import (
	"context"
)

// TxRepositories exposes repositories bound to a single database transaction
type TxRepositories interface {
	Subscriptions() SubscriptionRepository
	Payments() PaymentRepository
}

// UnitOfWork runs a function inside a database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}
