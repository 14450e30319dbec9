package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/service"
)

// MockPaymentGateway is a mock implementation of service.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{}
}

func (m *MockPaymentGateway) ProcessSubscriptionRenewal(ctx context.Context, payment *entity.Payment, subscription *entity.Subscription) (*service.GatewayResult, error) {
	args := m.Called(ctx, payment, subscription)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.GatewayResult), args.Error(1)
}

// MockNotificationSender is a mock implementation of service.NotificationSender
type MockNotificationSender struct {
	mock.Mock
}

func NewMockNotificationSender() *MockNotificationSender {
	return &MockNotificationSender{}
}

func (m *MockNotificationSender) SendRenewalReminderNotification(ctx context.Context, subscription *entity.Subscription, daysUntilRenewal int) error {
	args := m.Called(ctx, subscription, daysUntilRenewal)
	return args.Error(0)
}

func (m *MockNotificationSender) SendRenewalSuccessNotification(ctx context.Context, subscription *entity.Subscription, amount float64) error {
	args := m.Called(ctx, subscription, amount)
	return args.Error(0)
}

func (m *MockNotificationSender) SendPaymentFailedNotification(ctx context.Context, subscription *entity.Subscription, reason string) error {
	args := m.Called(ctx, subscription, reason)
	return args.Error(0)
}

// MockErrorReporter is a mock implementation of service.ErrorReporter
type MockErrorReporter struct {
	mock.Mock
}

func NewMockErrorReporter() *MockErrorReporter {
	return &MockErrorReporter{}
}

func (m *MockErrorReporter) CaptureError(ctx context.Context, err error, tags map[string]string) {
	m.Called(ctx, err, tags)
}

// MockStatisticsCache is a mock implementation of service.StatisticsCache
type MockStatisticsCache struct {
	mock.Mock
}

func NewMockStatisticsCache() *MockStatisticsCache {
	return &MockStatisticsCache{}
}

func (m *MockStatisticsCache) GetStatistics(ctx context.Context, academyID int64, windowDays int) (*entity.RenewalStatistics, error) {
	args := m.Called(ctx, academyID, windowDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RenewalStatistics), args.Error(1)
}

func (m *MockStatisticsCache) SetStatistics(ctx context.Context, stats *entity.RenewalStatistics) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

// MockGraceExpiryHandler is a mock implementation of service.GraceExpiryHandler
type MockGraceExpiryHandler struct {
	mock.Mock
}

func NewMockGraceExpiryHandler() *MockGraceExpiryHandler {
	return &MockGraceExpiryHandler{}
}

func (m *MockGraceExpiryHandler) HandleExpiredGracePeriod(ctx context.Context, sub *entity.Subscription, gracePeriod *entity.GracePeriod) error {
	args := m.Called(ctx, sub, gracePeriod)
	return args.Error(0)
}
