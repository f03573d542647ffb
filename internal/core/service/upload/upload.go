package upload

import (
	"audio-upload/internal/config"
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const reclaimTimeout = time.Minute

type uploadService struct {
	sessions  port.SessionStore
	chunks    port.ChunkStore
	artifacts port.ArtifactStore
	notifier  port.ProgressNotifier
	pipeline  port.JobPipeline
	cfg       config.UploadConfig
	logger    *slog.Logger

	finalizeGroup singleflight.Group
	now           func() time.Time
	background    func(task func())
}

// Option customizes the upload service
type Option func(*uploadService)

// WithClock replaces time.Now, used to evaluate TTLs
func WithClock(now func() time.Time) Option {
	return func(s *uploadService) {
		s.now = now
	}
}

// WithBackgroundRunner replaces the goroutine launcher used for storage reclamation
func WithBackgroundRunner(run func(task func())) Option {
	return func(s *uploadService) {
		s.background = run
	}
}

// NewUploadService creates a new upload service
func NewUploadService(
	sessions port.SessionStore,
	chunks port.ChunkStore,
	artifacts port.ArtifactStore,
	notifier port.ProgressNotifier,
	pipeline port.JobPipeline,
	cfg config.UploadConfig,
	logger *slog.Logger,
	opts ...Option,
) port.UploadService {
	s := &uploadService{
		sessions:   sessions,
		chunks:     chunks,
		artifacts:  artifacts,
		notifier:   notifier,
		pipeline:   pipeline,
		cfg:        cfg,
		logger:     logger.With("component", "upload"),
		now:        time.Now,
		background: func(task func()) { go task() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadSession fetches the session, checks ownership and applies the lazy TTL.
// The returned session has status EXPIRED when its TTL elapsed while ACTIVE.
func (s *uploadService) loadSession(ctx context.Context, sessionID uuid.UUID, ownerID string) (*domain.UploadSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOwnedBy(ownerID) {
		return nil, domain.ErrAccessDenied
	}
	if session.Status != domain.UploadSessionStatusActive || !session.IsExpired(s.now()) {
		return session, nil
	}

	won, err := s.sessions.CompareAndSwapStatus(ctx, sessionID, domain.UploadSessionStatusActive, domain.UploadSessionStatusExpired)
	if err != nil {
		return nil, err
	}
	if !won {
		// someone else moved it first, report whatever they decided
		return s.sessions.Get(ctx, sessionID)
	}

	session.Status = domain.UploadSessionStatusExpired
	s.logger.Info("session expired on access", "session_id", sessionID)
	s.notify(ctx, domain.NewProgressEvent(domain.EventTypeUploadExpired, session))
	s.reclaimChunks(ctx, sessionID)
	return session, nil
}

func (s *uploadService) notify(ctx context.Context, event domain.ProgressEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("failed to notify progress", "session_id", event.SessionID, "type", event.Type, "error", err)
	}
}

// reclaimChunks deletes the chunk scratch area of a session off the request path
func (s *uploadService) reclaimChunks(ctx context.Context, sessionID uuid.UUID) {
	bgCtx := context.WithoutCancel(ctx)
	s.background(func() {
		reclaimCtx, cancel := context.WithTimeout(bgCtx, reclaimTimeout)
		defer cancel()
		if err := s.chunks.DeleteSession(reclaimCtx, sessionID); err != nil {
			s.logger.Error("failed to reclaim chunks", "session_id", sessionID, "error", err)
			return
		}
		s.logger.Debug("chunks reclaimed", "session_id", sessionID)
	})
}

func statusError(status domain.UploadSessionStatus) error {
	if status == domain.UploadSessionStatusExpired {
		return domain.ErrSessionExpired
	}
	return fmt.Errorf("%w: session is %s", domain.ErrInvalidState, status)
}
