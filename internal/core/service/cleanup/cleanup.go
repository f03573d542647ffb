package cleanup

import (
	"audio-upload/internal/config"
	"audio-upload/internal/core/port"
	"log/slog"
	"time"
)

type cleanupService struct {
	sessions  port.SessionStore
	chunks    port.ChunkStore
	artifacts port.ArtifactStore
	notifier  port.ProgressNotifier
	cfg       config.UploadConfig
	logger    *slog.Logger
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(
	sessions port.SessionStore,
	chunks port.ChunkStore,
	artifacts port.ArtifactStore,
	notifier port.ProgressNotifier,
	cfg config.UploadConfig,
	logger *slog.Logger,
) port.CleanupService {
	return &cleanupService{
		sessions:  sessions,
		chunks:    chunks,
		artifacts: artifacts,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With("component", "cleanup"),
	}
}

func (c *cleanupService) workers() int {
	if c.cfg.SweepWorkers <= 0 {
		return 1
	}
	return c.cfg.SweepWorkers
}

// retained reports whether a terminal record should still be kept at now
func (c *cleanupService) retained(expiresAt, now time.Time) bool {
	return !now.After(expiresAt.Add(c.cfg.RetainTerminal))
}
