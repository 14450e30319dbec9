package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

// AuditLogRepository persists operator actions
type AuditLogRepository interface {
	Create(ctx context.Context, entry *entity.AuditEntry) error

	// ListBySubscription returns entries for a subscription, newest first
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]*entity.AuditEntry, error)
}
