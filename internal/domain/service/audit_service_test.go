package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/service"
	"github.com/bivex/subscription-renewals/tests/mocks"
)

func TestAuditService(t *testing.T) {
	ctx := context.Background()
	log := mocks.NewMemoryAuditLog()
	svc := service.NewAuditService(log, nil)
	subID := uuid.New()

	require.NoError(t, svc.LogAction(ctx, "operator-1", entity.AuditActionReactivate, &subID, map[string]any{"amount": 10.0}))
	require.NoError(t, svc.LogAction(ctx, "operator-1", entity.AuditActionProcessDue, nil, nil))

	all := log.Entries()
	require.Len(t, all, 2)
	assert.NotEqual(t, uuid.Nil, all[0].ID)
	assert.False(t, all[0].CreatedAt.IsZero())

	history, err := svc.History(ctx, subID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.AuditActionReactivate, history[0].Action)
}
