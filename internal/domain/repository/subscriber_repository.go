package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

// SubscriberRepository defines the interface for subscriber lookups
type SubscriberRepository interface {
	// GetByID retrieves a subscriber by ID
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Subscriber, error)
}
