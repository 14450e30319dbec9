package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

type MockRenewalStatisticsRepository struct {
	mock.Mock
}

func NewMockRenewalStatisticsRepository() *MockRenewalStatisticsRepository {
	return &MockRenewalStatisticsRepository{}
}

func (m *MockRenewalStatisticsRepository) ListFailedRenewals(ctx context.Context, filter repository.RenewalFilter) ([]*entity.Subscription, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Subscription), args.Error(1)
}

func (m *MockRenewalStatisticsRepository) CountRenewalsByType(ctx context.Context, filter repository.RenewalFilter, upcomingUntil time.Time) ([]entity.RenewalTypeCounts, error) {
	args := m.Called(ctx, filter, upcomingUntil)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RenewalTypeCounts), args.Error(1)
}
