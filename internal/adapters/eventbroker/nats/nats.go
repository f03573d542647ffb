package nats

import (
	"audio-upload/internal/config"
	"audio-upload/internal/core/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// duplicateWindow bounds how long JetStream remembers a job message id
const duplicateWindow = 24 * time.Hour

// Broker publishes progress events on core NATS and transcription jobs on JetStream
type Broker struct {
	logger *slog.Logger
	conn   *nats.Conn
	js     jetstream.JetStream
	config config.NATSConfig
}

// NewBroker connects to NATS and makes sure the job stream exists
func NewBroker(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (*Broker, error) {
	logger = logger.With("component", "nats")
	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to JetStream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.JobStreamName,
		Subjects:   []string{cfg.JobSubject},
		Retention:  jetstream.WorkQueuePolicy,
		Storage:    jetstream.FileStorage,
		Duplicates: duplicateWindow,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create job stream: %w", err)
	}

	return &Broker{
		conn:   conn,
		js:     js,
		config: cfg,
		logger: logger,
	}, nil
}

// ProgressSubject is the subject events of a session are published on
func (b *Broker) ProgressSubject(event domain.ProgressEvent) string {
	return b.config.ProgressSubject + "." + event.SessionID.String()
}

// Notify publishes the event without waiting for any subscriber
func (b *Broker) Notify(_ context.Context, event domain.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode progress event: %w", err)
	}
	if err := b.conn.Publish(b.ProgressSubject(event), data); err != nil {
		return fmt.Errorf("failed to publish progress event: %w", err)
	}
	return nil
}

// Submit hands the job to the stream. The session id is the message id, so a
// resubmission inside the duplicate window yields the original sequence.
func (b *Broker) Submit(ctx context.Context, req domain.JobRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode job request: %w", err)
	}

	ack, err := b.js.Publish(ctx, b.config.JobSubject, data, jetstream.WithMsgID(req.SessionID.String()))
	if err != nil {
		return "", fmt.Errorf("failed to publish job: %w", err)
	}
	if ack.Duplicate {
		b.logger.Info("job already submitted", "session_id", req.SessionID, "sequence", ack.Sequence)
	}
	return fmt.Sprintf("%s:%d", ack.Stream, ack.Sequence), nil
}

// Close flushes pending publishes and closes the connection
func (b *Broker) Close() error {
	if b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}
