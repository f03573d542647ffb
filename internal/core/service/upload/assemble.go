package upload

import (
	"audio-upload/internal/core/domain"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// assemble streams every chunk in index order into the artifact while hashing it.
// The session must already be ASSEMBLING.
func (s *uploadService) assemble(ctx context.Context, session *domain.UploadSession) (*domain.FinalizeResult, error) {
	s.logger.Info("assembly started", "session_id", session.ID, "total_chunks", session.TotalChunks, "total_size", session.TotalSize)

	artifact, err := s.artifacts.Create(ctx, session.ID, session.OriginalFilename)
	if err != nil {
		return nil, s.failAssembly(ctx, session, session.ID, fmt.Errorf("create artifact: %w", err))
	}

	fileHash := sha256.New()
	out := io.MultiWriter(artifact, fileHash)
	var written int64
	for index := 0; index < session.TotalChunks; index++ {
		n, err := s.copyChunk(ctx, out, session, index)
		written += n
		if err != nil {
			if abortErr := artifact.Abort(); abortErr != nil {
				s.logger.Error("failed to abort artifact", "session_id", session.ID, "error", abortErr)
			}
			return nil, s.failAssembly(ctx, session, session.ID, err)
		}
	}
	if written != session.TotalSize {
		if abortErr := artifact.Abort(); abortErr != nil {
			s.logger.Error("failed to abort artifact", "session_id", session.ID, "error", abortErr)
		}
		return nil, s.failAssembly(ctx, session, session.ID, fmt.Errorf("assembled %d bytes, expected %d", written, session.TotalSize))
	}

	path, err := artifact.Commit()
	if err != nil {
		return nil, s.failAssembly(ctx, session, session.ID, fmt.Errorf("commit artifact: %w", err))
	}
	digest := hex.EncodeToString(fileHash.Sum(nil))

	if err := s.sessions.RecordAssembly(ctx, session.ID, digest, path); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			return s.discardAssembly(ctx, session.ID, path)
		}
		return nil, s.failAssembly(ctx, session, session.ID, fmt.Errorf("record assembly: %w", err))
	}

	won, err := s.sessions.CompareAndSwapStatus(ctx, session.ID, domain.UploadSessionStatusAssembling, domain.UploadSessionStatusCompleted)
	if err != nil {
		return nil, err
	}
	if !won {
		return s.discardAssembly(ctx, session.ID, path)
	}

	session.Status = domain.UploadSessionStatusCompleted
	session.FileDigest = digest
	session.ArtifactPath = path
	s.logger.Info("assembly finished", "session_id", session.ID, "artifact", path, "file_digest", digest)
	s.reclaimChunks(ctx, session.ID)

	return s.handoff(ctx, session)
}

// copyChunk writes one chunk to out after checking it against its integrity record
func (s *uploadService) copyChunk(ctx context.Context, out io.Writer, session *domain.UploadSession, index int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	reader, record, err := s.chunks.Open(ctx, session.ID, index)
	if err != nil {
		return 0, fmt.Errorf("open chunk %d: %w", index, err)
	}
	defer reader.Close()

	if want := session.ExpectedChunkSize(index); record.Size != want {
		return 0, fmt.Errorf("chunk %d record has %d bytes, expected %d", index, record.Size, want)
	}

	chunkHash := sha256.New()
	n, err := io.Copy(out, io.TeeReader(reader, chunkHash))
	if err != nil {
		return n, fmt.Errorf("copy chunk %d: %w", index, err)
	}
	if n != record.Size {
		return n, fmt.Errorf("chunk %d has %d bytes on storage, record says %d", index, n, record.Size)
	}
	if got := hex.EncodeToString(chunkHash.Sum(nil)); got != record.Digest {
		return n, fmt.Errorf("chunk %d digest mismatch", index)
	}
	return n, nil
}

// failAssembly moves the session to FAILED and wraps cause as an assembly failure
func (s *uploadService) failAssembly(ctx context.Context, session *domain.UploadSession, sessionID uuid.UUID, cause error) error {
	s.logger.Error("assembly failed", "session_id", sessionID, "error", cause)
	// still record the failure when cause is an expired assembly deadline
	ctx = context.WithoutCancel(ctx)

	won, err := s.sessions.CompareAndSwapStatus(ctx, sessionID, domain.UploadSessionStatusAssembling, domain.UploadSessionStatusFailed)
	if err != nil {
		s.logger.Error("failed to mark session as failed", "session_id", sessionID, "error", err)
	}
	if !won && err == nil {
		// a cancel moved the session while we were reading chunks
		if current, getErr := s.sessions.Get(ctx, sessionID); getErr == nil && current.Status != domain.UploadSessionStatusFailed {
			return statusError(current.Status)
		}
	}
	if won && session != nil {
		session.Status = domain.UploadSessionStatusFailed
		event := domain.NewProgressEvent(domain.EventTypeUploadFailed, session)
		event.Error = cause.Error()
		s.notify(ctx, event)
		s.reclaimChunks(ctx, sessionID)
	}
	return fmt.Errorf("%w: %w", domain.ErrAssemblyFailure, cause)
}

// discardAssembly drops a finished artifact because another caller (cancel) won the session
func (s *uploadService) discardAssembly(ctx context.Context, sessionID uuid.UUID, path string) (*domain.FinalizeResult, error) {
	s.logger.Info("assembly discarded, session changed state", "session_id", sessionID)
	if err := s.artifacts.Remove(ctx, path); err != nil {
		s.logger.Error("failed to remove discarded artifact", "session_id", sessionID, "artifact", path, "error", err)
	}
	current, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.resultFor(ctx, current)
}
