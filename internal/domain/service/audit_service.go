package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

const defaultAuditHistoryLimit = 50

// AuditService records operator actions taken through the admin API
type AuditService struct {
	repo   repository.AuditLogRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditService creates a new audit service
func NewAuditService(repo repository.AuditLogRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger, now: time.Now}
}

// LogAction writes an audit entry. subscriptionID may be nil for bulk actions.
func (s *AuditService) LogAction(ctx context.Context, operatorID, action string, subscriptionID *uuid.UUID, details map[string]any) error {
	entry := &entity.AuditEntry{
		ID:             uuid.New(),
		OperatorID:     operatorID,
		Action:         action,
		SubscriptionID: subscriptionID,
		Details:        details,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("failed to write audit entry",
			zap.String("operator_id", operatorID),
			zap.String("action", action),
			zap.Error(err))
		return err
	}
	return nil
}

// History returns the latest actions taken on a subscription
func (s *AuditService) History(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]*entity.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditHistoryLimit
	}
	return s.repo.ListBySubscription(ctx, subscriptionID, limit)
}
