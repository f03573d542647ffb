package port

import (
	"audio-upload/internal/core/domain"
	"context"

	"github.com/google/uuid"
)

// UploadService is an interface to define the resumable upload operations
type UploadService interface {
	InitUpload(ctx context.Context, req domain.InitUploadRequest) (*domain.InitUploadResult, error)
	UploadChunk(ctx context.Context, sessionID uuid.UUID, ownerID string, index int, data []byte, clientDigest string) (*domain.ChunkUploadResult, error)
	Finalize(ctx context.Context, sessionID uuid.UUID, ownerID string) (*domain.FinalizeResult, error)
	GetStatus(ctx context.Context, sessionID uuid.UUID, ownerID string) (*domain.StatusResult, error)
	Cancel(ctx context.Context, sessionID uuid.UUID, ownerID string) error
}
