package mocks

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"github.com/bivex/subscription-renewals/internal/infrastructure/mailer"
)

// MockEnqueuer records enqueued asynq tasks
type MockEnqueuer struct {
	mock.Mock
}

func NewMockEnqueuer() *MockEnqueuer {
	return &MockEnqueuer{}
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// Tasks returns every task passed to EnqueueContext, in order
func (m *MockEnqueuer) Tasks() []*asynq.Task {
	var tasks []*asynq.Task
	for _, call := range m.Calls {
		if call.Method == "EnqueueContext" {
			tasks = append(tasks, call.Arguments.Get(1).(*asynq.Task))
		}
	}
	return tasks
}

type MockMailer struct {
	mock.Mock
}

func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) Send(ctx context.Context, email mailer.Email) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}
