package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

// PaymentRepository defines the interface for renewal payment records
type PaymentRepository interface {
	// Create inserts a new payment record
	Create(ctx context.Context, payment *entity.Payment) error

	// Update persists status, failure reason and gateway reference
	Update(ctx context.Context, payment *entity.Payment) error

	// GetByID retrieves a payment by ID
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)

	// GetBySubscriptionID retrieves payments for a subscription, newest first
	GetBySubscriptionID(ctx context.Context, subscriptionID uuid.UUID) ([]*entity.Payment, error)
}
