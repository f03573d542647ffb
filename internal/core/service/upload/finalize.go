package upload

import (
	"audio-upload/internal/core/domain"
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Finalize assembles a fully received session, or reports the missing chunks.
// Concurrent calls for the same session and owner share one execution, which
// keeps running when the caller goes away.
func (s *uploadService) Finalize(ctx context.Context, sessionID uuid.UUID, ownerID string) (*domain.FinalizeResult, error) {
	key := sessionID.String() + "/" + ownerID
	ch := s.finalizeGroup.DoChan(key, func() (any, error) {
		runCtx, cancel := s.assemblyContext(ctx)
		defer cancel()
		return s.finalize(runCtx, sessionID, ownerID)
	})

	select {
	case <-ctx.Done():
		s.logger.Info("finalize caller gone, assembly continues", "session_id", sessionID)
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("finalize result shared", "session_id", sessionID)
		}
		result := *res.Val.(*domain.FinalizeResult)
		return &result, nil
	}
}

// assemblyContext keeps the caller's values but not its cancellation
func (s *uploadService) assemblyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.cfg.AssemblyTimeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, s.cfg.AssemblyTimeout)
}

func (s *uploadService) finalize(ctx context.Context, sessionID uuid.UUID, ownerID string) (*domain.FinalizeResult, error) {
	session, err := s.loadSession(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.UploadSessionStatusActive {
		return s.resultFor(ctx, session)
	}

	if !session.IsComplete() {
		return &domain.FinalizeResult{
			Status:  domain.UploadSessionStatusActive,
			Missing: session.MissingChunks(0),
		}, nil
	}

	won, err := s.sessions.CompareAndSwapStatus(ctx, sessionID, domain.UploadSessionStatusActive, domain.UploadSessionStatusAssembling)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return s.resultFor(ctx, current)
	}

	snapshot := *session
	snapshot.Status = domain.UploadSessionStatusAssembling

	// re-read inside the guarded section, received_chunks can only have grown
	session, err = s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, s.failAssembly(ctx, &snapshot, sessionID, fmt.Errorf("reload session: %w", err))
	}
	if !session.IsComplete() {
		return nil, s.failAssembly(ctx, session, sessionID, fmt.Errorf("%d of %d chunks registered", session.ReceivedCount(), session.TotalChunks))
	}

	return s.assemble(ctx, session)
}

// resultFor maps a session that is not (or no longer) ACTIVE to a finalize answer
func (s *uploadService) resultFor(ctx context.Context, session *domain.UploadSession) (*domain.FinalizeResult, error) {
	switch session.Status {
	case domain.UploadSessionStatusCompleted:
		return s.handoff(ctx, session)
	case domain.UploadSessionStatusAssembling:
		return &domain.FinalizeResult{Status: domain.UploadSessionStatusAssembling}, nil
	case domain.UploadSessionStatusActive:
		return &domain.FinalizeResult{
			Status:  domain.UploadSessionStatusActive,
			Missing: session.MissingChunks(0),
		}, nil
	default:
		return nil, statusError(session.Status)
	}
}

// handoff submits a completed artifact to the pipeline once and returns the stored handle
func (s *uploadService) handoff(ctx context.Context, session *domain.UploadSession) (*domain.FinalizeResult, error) {
	if session.JobHandle == "" {
		handle, err := s.pipeline.Submit(ctx, domain.JobRequest{
			JobHandle:    session.ID.String(),
			SessionID:    session.ID,
			OwnerID:      session.OwnerID,
			ArtifactPath: session.ArtifactPath,
			FileDigest:   session.FileDigest,
			JobHint:      session.JobHint,
			SubmittedAt:  s.now().UTC(),
		})
		if err != nil {
			s.logger.Error("failed to submit transcription job", "session_id", session.ID, "error", err)
			return nil, fmt.Errorf("%w: %w", domain.ErrJobSubmission, err)
		}
		if err := s.sessions.RecordJobHandle(ctx, session.ID, handle); err != nil {
			return nil, fmt.Errorf("could not record job handle: %w", err)
		}
		session.JobHandle = handle

		s.logger.Info("upload completed", "session_id", session.ID, "job_handle", handle, "file_digest", session.FileDigest)
		s.notify(ctx, domain.NewProgressEvent(domain.EventTypeUploadCompleted, session))
	}

	return &domain.FinalizeResult{
		Status:     domain.UploadSessionStatusCompleted,
		JobHandle:  session.JobHandle,
		FileDigest: session.FileDigest,
	}, nil
}
