package port

import (
	"audio-upload/internal/core/domain"
	"context"
)

// ProgressNotifier receives progress events (nats, redis, ...). Delivery is best-effort.
type ProgressNotifier interface {
	Notify(ctx context.Context, event domain.ProgressEvent) error
	Close() error
}

// JobPipeline hands an assembled artifact to the transcription pipeline
type JobPipeline interface {
	Submit(ctx context.Context, req domain.JobRequest) (string, error)
}
