package port

import (
	"context"
	"time"
)

// CleanupService is service that expires and reclaims stale sessions
type CleanupService interface {
	CleanupExpiredSessions(ctx context.Context, now time.Time) error
}
