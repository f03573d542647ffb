package repository

import (
	"audio-upload/internal/core/domain"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockSessionStore is a mock implementation of port.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{}
}

func (m *MockSessionStore) Create(ctx context.Context, session domain.UploadSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*domain.UploadSession), args.Error(1)
}

func (m *MockSessionStore) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next domain.UploadSessionStatus) (bool, error) {
	args := m.Called(ctx, id, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionStore) AddReceivedChunk(ctx context.Context, id uuid.UUID, index int) (bool, int, error) {
	args := m.Called(ctx, id, index)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *MockSessionStore) RecordAssembly(ctx context.Context, id uuid.UUID, fileDigest, artifactPath string) error {
	args := m.Called(ctx, id, fileDigest, artifactPath)
	return args.Error(0)
}

func (m *MockSessionStore) RecordJobHandle(ctx context.Context, id uuid.UUID, jobHandle string) error {
	args := m.Called(ctx, id, jobHandle)
	return args.Error(0)
}

func (m *MockSessionStore) FindExpired(ctx context.Context, now time.Time) ([]domain.UploadSession, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]domain.UploadSession), args.Error(1)
}

func (m *MockSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
