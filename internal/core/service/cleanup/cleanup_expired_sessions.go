package cleanup

import (
	"audio-upload/internal/core/domain"
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// CleanupExpiredSessions expires stale ACTIVE sessions and reclaims the storage of
// every terminal session that did not complete
func (c *cleanupService) CleanupExpiredSessions(ctx context.Context, now time.Time) error {
	sessions, err := c.sessions.FindExpired(ctx, now)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())

	for _, session := range sessions {
		g.Go(func() error {
			if sweepErr := c.sweep(gCtx, session, now); sweepErr != nil {
				c.logger.Error("Failed to sweep session", "session_id", session.ID, "status", session.Status, "err", sweepErr)
			}
			// one bad session must not stop the others
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.logger.Info("sweep of expired sessions completed", "scanned", len(sessions))
	return nil
}

func (c *cleanupService) sweep(ctx context.Context, session domain.UploadSession, now time.Time) error {
	switch session.Status {
	case domain.UploadSessionStatusActive:
		return c.expire(ctx, &session)
	case domain.UploadSessionStatusAssembling:
		// an assembler that outlived the retention window is gone
		if c.retained(session.ExpiresAt, now) {
			return nil
		}
		return c.abandon(ctx, &session)
	case domain.UploadSessionStatusCompleted:
		return nil
	default:
		return c.reclaim(ctx, &session, now)
	}
}

func (c *cleanupService) expire(ctx context.Context, session *domain.UploadSession) error {
	won, err := c.sessions.CompareAndSwapStatus(ctx, session.ID, domain.UploadSessionStatusActive, domain.UploadSessionStatusExpired)
	if err != nil {
		return err
	}
	if !won {
		// finalize or cancel got there first
		return nil
	}
	session.Status = domain.UploadSessionStatusExpired
	c.notify(ctx, domain.NewProgressEvent(domain.EventTypeUploadExpired, session))

	if err := c.chunks.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("reclaim chunks: %w", err)
	}
	c.logger.Info("session expired", "session_id", session.ID)
	return nil
}

func (c *cleanupService) abandon(ctx context.Context, session *domain.UploadSession) error {
	won, err := c.sessions.CompareAndSwapStatus(ctx, session.ID, domain.UploadSessionStatusAssembling, domain.UploadSessionStatusFailed)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}
	session.Status = domain.UploadSessionStatusFailed
	event := domain.NewProgressEvent(domain.EventTypeUploadFailed, session)
	event.Error = "assembly abandoned"
	c.notify(ctx, event)

	// the dead assembler may have left a half written artifact behind
	if err := c.artifacts.DiscardPartial(ctx, session.ID, session.OriginalFilename); err != nil {
		c.logger.Warn("failed to discard partial artifact", "session_id", session.ID, "err", err)
	}
	if err := c.chunks.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("reclaim chunks: %w", err)
	}
	c.logger.Warn("stale assembly marked as failed", "session_id", session.ID)
	return nil
}

// reclaim removes leftover chunks of a terminal session and drops its record after retention
func (c *cleanupService) reclaim(ctx context.Context, session *domain.UploadSession, now time.Time) error {
	if err := c.chunks.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("reclaim chunks: %w", err)
	}
	if c.retained(session.ExpiresAt, now) {
		return nil
	}
	if err := c.sessions.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	c.logger.Debug("terminal session removed", "session_id", session.ID, "status", session.Status)
	return nil
}

func (c *cleanupService) notify(ctx context.Context, event domain.ProgressEvent) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, event); err != nil {
		c.logger.Warn("failed to notify progress", "session_id", event.SessionID, "type", event.Type, "err", err)
	}
}
