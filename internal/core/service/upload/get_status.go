package upload

import (
	"audio-upload/internal/core/domain"
	"context"

	"github.com/google/uuid"
)

// GetStatus returns a snapshot of the session, applying the lazy TTL
func (s *uploadService) GetStatus(ctx context.Context, sessionID uuid.UUID, ownerID string) (*domain.StatusResult, error) {
	session, err := s.loadSession(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	result := &domain.StatusResult{
		Status:        session.Status,
		ReceivedCount: session.ReceivedCount(),
		TotalChunks:   session.TotalChunks,
		Missing:       []int{},
		ExpiresAt:     session.ExpiresAt,
		FileDigest:    session.FileDigest,
		JobHandle:     session.JobHandle,
	}
	if session.Status == domain.UploadSessionStatusActive {
		result.Missing = session.MissingChunks(s.cfg.MissingCap)
	}
	return result, nil
}
