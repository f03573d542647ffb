package upload

import (
	"audio-upload/internal/core/domain"
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUploadService is a mock implementation of UploadService
type MockUploadService struct {
	mock.Mock
}

// NewMockUploadService creates a new MockUploadService
func NewMockUploadService() *MockUploadService {
	return &MockUploadService{}
}

func (m *MockUploadService) InitUpload(ctx context.Context, req domain.InitUploadRequest) (*domain.InitUploadResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(*domain.InitUploadResult), args.Error(1)
}

func (m *MockUploadService) UploadChunk(ctx context.Context, sessionID uuid.UUID, ownerID string, index int, data []byte, clientDigest string) (*domain.ChunkUploadResult, error) {
	args := m.Called(ctx, sessionID, ownerID, index, data, clientDigest)
	return args.Get(0).(*domain.ChunkUploadResult), args.Error(1)
}

func (m *MockUploadService) Finalize(ctx context.Context, sessionID uuid.UUID, ownerID string) (*domain.FinalizeResult, error) {
	args := m.Called(ctx, sessionID, ownerID)
	return args.Get(0).(*domain.FinalizeResult), args.Error(1)
}

func (m *MockUploadService) GetStatus(ctx context.Context, sessionID uuid.UUID, ownerID string) (*domain.StatusResult, error) {
	args := m.Called(ctx, sessionID, ownerID)
	return args.Get(0).(*domain.StatusResult), args.Error(1)
}

func (m *MockUploadService) Cancel(ctx context.Context, sessionID uuid.UUID, ownerID string) error {
	args := m.Called(ctx, sessionID, ownerID)
	return args.Error(0)
}
