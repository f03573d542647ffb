package port

import (
	"audio-upload/internal/core/domain"
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionStore is the single source of truth for upload sessions.
// CompareAndSwapStatus is the only way a status changes.
type SessionStore interface {
	Create(ctx context.Context, session domain.UploadSession) error
	Get(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error)
	// CompareAndSwapStatus moves id from expected to next and reports whether it won.
	// It returns domain.ErrInvalidTransition if expected -> next is not an edge.
	CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next domain.UploadSessionStatus) (bool, error)
	// AddReceivedChunk registers index on an active session. It fails with
	// domain.ErrInvalidState when the session left ACTIVE.
	AddReceivedChunk(ctx context.Context, id uuid.UUID, index int) (alreadyPresent bool, receivedCount int, err error)
	// RecordAssembly stores the digest and artifact path of an assembling session.
	RecordAssembly(ctx context.Context, id uuid.UUID, fileDigest, artifactPath string) error
	// RecordJobHandle stores the pipeline handle of a completed session.
	RecordJobHandle(ctx context.Context, id uuid.UUID, jobHandle string) error
	// FindExpired lists non-completed sessions whose expires_at is before now.
	FindExpired(ctx context.Context, now time.Time) ([]domain.UploadSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Close() error
}
