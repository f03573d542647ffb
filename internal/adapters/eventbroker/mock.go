package eventbroker

import (
	"audio-upload/internal/core/domain"
	"context"

	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock implementation of port.ProgressNotifier
type MockNotifier struct {
	mock.Mock
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, event domain.ProgressEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockNotifier) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockJobPipeline is a mock implementation of port.JobPipeline
type MockJobPipeline struct {
	mock.Mock
}

func NewMockJobPipeline() *MockJobPipeline {
	return &MockJobPipeline{}
}

func (m *MockJobPipeline) Submit(ctx context.Context, req domain.JobRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
