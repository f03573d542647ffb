package notify

import (
	"audio-upload/internal/core/domain"
	"context"
	"log/slog"
)

// LogNotifier writes every event to the logger, used when no broker is configured
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "progress")}
}

func (n *LogNotifier) Notify(ctx context.Context, event domain.ProgressEvent) error {
	n.logger.InfoContext(ctx, "progress",
		"type", event.Type,
		"session_id", event.SessionID,
		"received_count", event.ReceivedCount,
		"total_chunks", event.TotalChunks,
		"status", event.Status,
	)
	return nil
}

func (n *LogNotifier) Close() error {
	return nil
}
