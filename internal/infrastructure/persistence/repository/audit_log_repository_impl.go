package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

type auditLogRepositoryImpl struct {
	db querier
}

// NewAuditLogRepository creates a new audit log repository implementation
func NewAuditLogRepository(pool *pgxpool.Pool) repository.AuditLogRepository {
	return &auditLogRepositoryImpl{db: pool}
}

func (r *auditLogRepositoryImpl) Create(ctx context.Context, entry *entity.AuditEntry) error {
	query := `
		INSERT INTO renewal_audit_log (id, operator_id, action, subscription_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.OperatorID, entry.Action, entry.SubscriptionID, metadataParam(entry.Details), entry.CreatedAt,
	)
	if err != nil {
		return domainErrors.NewDatabaseError("create audit entry", err)
	}
	return nil
}

func (r *auditLogRepositoryImpl) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, operator_id, action, subscription_id, details, created_at
		FROM renewal_audit_log
		WHERE subscription_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, subscriptionID, limitParam(limit))
	if err != nil {
		return nil, domainErrors.NewDatabaseError("list audit entries", err)
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var e entity.AuditEntry
		if err := rows.Scan(&e.ID, &e.OperatorID, &e.Action, &e.SubscriptionID, &e.Details, &e.CreatedAt); err != nil {
			return nil, domainErrors.NewDatabaseError("list audit entries", err)
		}
		if len(e.Details) == 0 {
			e.Details = nil
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, domainErrors.NewDatabaseError("list audit entries", err)
	}
	return entries, nil
}
