package upload

import (
	"audio-upload/internal/core/domain"
	"context"

	"github.com/google/uuid"
)

const maxCancelAttempts = 3

// Cancel moves an active or assembling session to CANCELLED and reclaims its chunks.
// Cancelling an already cancelled session is a no-op.
func (s *uploadService) Cancel(ctx context.Context, sessionID uuid.UUID, ownerID string) error {
	session, err := s.loadSession(ctx, sessionID, ownerID)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxCancelAttempts; attempt++ {
		switch session.Status {
		case domain.UploadSessionStatusCancelled:
			return nil
		case domain.UploadSessionStatusActive, domain.UploadSessionStatusAssembling:
		default:
			return statusError(session.Status)
		}

		won, err := s.sessions.CompareAndSwapStatus(ctx, sessionID, session.Status, domain.UploadSessionStatusCancelled)
		if err != nil {
			return err
		}
		if won {
			s.logger.Info("upload cancelled", "session_id", sessionID, "from", session.Status)
			session.Status = domain.UploadSessionStatusCancelled
			s.notify(ctx, domain.NewProgressEvent(domain.EventTypeUploadCancelled, session))
			s.reclaimChunks(ctx, sessionID)
			return nil
		}

		session, err = s.sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
	}
	return statusError(session.Status)
}
