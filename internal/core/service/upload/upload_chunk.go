package upload

import (
	"audio-upload/internal/core/domain"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UploadChunk validates and persists one chunk, then registers it on the session
func (s *uploadService) UploadChunk(ctx context.Context, sessionID uuid.UUID, ownerID string, index int, data []byte, clientDigest string) (*domain.ChunkUploadResult, error) {
	session, err := s.loadSession(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.UploadSessionStatusExpired {
		return nil, domain.ErrSessionExpired
	}
	if !session.ValidIndex(index) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", domain.ErrInvalidChunkIndex, index, session.TotalChunks)
	}
	if session.Status != domain.UploadSessionStatusActive {
		return nil, statusError(session.Status)
	}

	if session.HasChunk(index) {
		return &domain.ChunkUploadResult{
			Index:         index,
			Status:        domain.ChunkStatusAlreadyUploaded,
			ReceivedCount: session.ReceivedCount(),
			TotalChunks:   session.TotalChunks,
		}, nil
	}

	if want := session.ExpectedChunkSize(index); int64(len(data)) != want {
		return nil, fmt.Errorf("%w: chunk %d has %d bytes, expected %d", domain.ErrChunkSizeMismatch, index, len(data), want)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if clientDigest != "" && !strings.EqualFold(clientDigest, digest) {
		return nil, fmt.Errorf("%w: chunk %d", domain.ErrChecksumMismatch, index)
	}

	chunk := domain.Chunk{
		SessionID:  sessionID,
		Index:      index,
		Size:       int64(len(data)),
		Digest:     digest,
		ReceivedAt: s.now().UTC(),
	}
	if err := s.chunks.Put(ctx, chunk, bytes.NewReader(data)); err != nil {
		s.logger.Error("failed to persist chunk", "session_id", sessionID, "index", index, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageIO, err)
	}

	alreadyPresent, receivedCount, err := s.sessions.AddReceivedChunk(ctx, sessionID, index)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			return s.lateRegistration(ctx, sessionID, index, err)
		}
		return nil, err
	}

	result := &domain.ChunkUploadResult{
		Index:         index,
		Status:        domain.ChunkStatusUploaded,
		ReceivedCount: receivedCount,
		TotalChunks:   session.TotalChunks,
	}
	if alreadyPresent {
		result.Status = domain.ChunkStatusAlreadyUploaded
		return result, nil
	}

	event := domain.NewProgressEvent(domain.EventTypeChunkReceived, session)
	event.Index = index
	event.ReceivedCount = receivedCount
	s.notify(ctx, event)

	return result, nil
}

// lateRegistration answers a chunk whose registration found the session no longer ACTIVE.
// Chunk files are reclaimed only once assembly can no longer be reading them.
func (s *uploadService) lateRegistration(ctx context.Context, sessionID uuid.UUID, index int, cause error) (*domain.ChunkUploadResult, error) {
	current, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, cause
	}

	switch current.Status {
	case domain.UploadSessionStatusCancelled, domain.UploadSessionStatusExpired,
		domain.UploadSessionStatusFailed, domain.UploadSessionStatusCompleted:
		s.logger.Info("dropping chunk registration, session no longer active", "session_id", sessionID, "index", index, "status", current.Status)
		s.reclaimChunks(ctx, sessionID)
	}

	if current.HasChunk(index) {
		return &domain.ChunkUploadResult{
			Index:         index,
			Status:        domain.ChunkStatusAlreadyUploaded,
			ReceivedCount: current.ReceivedCount(),
			TotalChunks:   current.TotalChunks,
		}, nil
	}
	return nil, statusError(current.Status)
}
