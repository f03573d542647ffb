package upload

import (
	"audio-upload/internal/core/domain"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// InitUpload creates a new active session owned by the caller
func (s *uploadService) InitUpload(ctx context.Context, req domain.InitUploadRequest) (*domain.InitUploadResult, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidArgument)
	}
	if req.TotalSize <= 0 {
		return nil, fmt.Errorf("%w: total size must be positive", domain.ErrInvalidArgument)
	}
	if req.TotalSize > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: total size exceeds %d bytes", domain.ErrInvalidArgument, s.cfg.MaxFileSize)
	}
	if req.ChunkSizeHint < 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", domain.ErrInvalidArgument)
	}

	chunkSize := s.cfg.ClampChunkSize(req.ChunkSizeHint)
	now := s.now().UTC()

	session := domain.UploadSession{
		ID:               uuid.New(),
		OwnerID:          req.OwnerID,
		OriginalFilename: req.Filename,
		TotalSize:        req.TotalSize,
		ChunkSize:        chunkSize,
		TotalChunks:      domain.TotalChunksFor(req.TotalSize, chunkSize),
		ReceivedChunks:   []int{},
		Status:           domain.UploadSessionStatusActive,
		JobHint:          req.JobHint,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cfg.SessionTTL),
		UpdatedAt:        now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("could not create upload session: %w", err)
	}

	s.logger.Info("upload session created",
		"session_id", session.ID,
		"owner_id", session.OwnerID,
		"total_size", session.TotalSize,
		"chunk_size", session.ChunkSize,
		"total_chunks", session.TotalChunks)

	return &domain.InitUploadResult{
		SessionID:   session.ID,
		ChunkSize:   session.ChunkSize,
		TotalChunks: session.TotalChunks,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}
