package redis

import (
	"audio-upload/internal/config"
	"audio-upload/internal/core/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes progress events on a per-session Redis channel
type Notifier struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewNotifier connects to Redis and checks the connection
func NewNotifier(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Notifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Notifier{client: client, prefix: cfg.ChannelPrefix, logger: logger.With("component", "redis")}, nil
}

// Channel is the pub/sub channel of one session
func (n *Notifier) Channel(event domain.ProgressEvent) string {
	return n.prefix + ":" + event.SessionID.String()
}

func (n *Notifier) Notify(ctx context.Context, event domain.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode progress event: %w", err)
	}
	receivers, err := n.client.Publish(ctx, n.Channel(event), data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish progress event: %w", err)
	}
	n.logger.Debug("progress event published", "session_id", event.SessionID, "type", event.Type, "receivers", receivers)
	return nil
}

func (n *Notifier) Close() error {
	return n.client.Close()
}
