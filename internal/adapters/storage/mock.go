package storage

import (
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockChunkStore is a mock implementation of port.ChunkStore
type MockChunkStore struct {
	mock.Mock
}

func NewMockChunkStore() *MockChunkStore {
	return &MockChunkStore{}
}

func (m *MockChunkStore) Put(ctx context.Context, chunk domain.Chunk, data io.Reader) error {
	args := m.Called(ctx, chunk, data)
	return args.Error(0)
}

func (m *MockChunkStore) Open(ctx context.Context, sessionID uuid.UUID, index int) (io.ReadCloser, *domain.Chunk, error) {
	args := m.Called(ctx, sessionID, index)
	return args.Get(0).(io.ReadCloser), args.Get(1).(*domain.Chunk), args.Error(2)
}

func (m *MockChunkStore) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// MockArtifactStore is a mock implementation of port.ArtifactStore
type MockArtifactStore struct {
	mock.Mock
}

func NewMockArtifactStore() *MockArtifactStore {
	return &MockArtifactStore{}
}

func (m *MockArtifactStore) Create(ctx context.Context, sessionID uuid.UUID, filename string) (port.ArtifactWriter, error) {
	args := m.Called(ctx, sessionID, filename)
	return args.Get(0).(port.ArtifactWriter), args.Error(1)
}

func (m *MockArtifactStore) Remove(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *MockArtifactStore) DiscardPartial(ctx context.Context, sessionID uuid.UUID, filename string) error {
	args := m.Called(ctx, sessionID, filename)
	return args.Error(0)
}

// MockArtifactWriter is a mock implementation of port.ArtifactWriter
type MockArtifactWriter struct {
	mock.Mock
}

func NewMockArtifactWriter() *MockArtifactWriter {
	return &MockArtifactWriter{}
}

func (m *MockArtifactWriter) Write(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockArtifactWriter) Commit() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockArtifactWriter) Abort() error {
	args := m.Called()
	return args.Error(0)
}
