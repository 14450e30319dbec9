package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

type MockSubscriberRepository struct {
	mock.Mock
}

func NewMockSubscriberRepository() *MockSubscriberRepository {
	return &MockSubscriberRepository{}
}

func (m *MockSubscriberRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Subscriber, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Subscriber), args.Error(1)
}
