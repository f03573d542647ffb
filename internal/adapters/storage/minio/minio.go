package minio

import (
	"audio-upload/internal/config"
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	chunkPrefix    = "chunks/"
	artifactPrefix = "artifacts/"

	metaDigest     = "Chunk-Sha256"
	metaReceivedAt = "Chunk-Received-At"

	artifactPartSize = 16 * 1024 * 1024
)

// Adapter stores chunks and assembled artifacts in one bucket
type Adapter struct {
	client *minio.Client
	config config.MinioConfig
	logger *slog.Logger
}

var (
	_ port.ChunkStore    = (*Adapter)(nil)
	_ port.ArtifactStore = (*Adapter)(nil)
)

// NewAdapter returns Adapter, creating the bucket if it does not exist
func NewAdapter(ctx context.Context, cfg config.MinioConfig, logger *slog.Logger) (*Adapter, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Adapter{client: client, config: cfg, logger: logger.With("component", "minio")}, nil
}

func sessionPrefix(sessionID uuid.UUID) string {
	return chunkPrefix + sessionID.String() + "/"
}

func chunkKey(sessionID uuid.UUID, index int) string {
	return sessionPrefix(sessionID) + strconv.Itoa(index)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}

// Put uploads the chunk unless an object already exists for its index
func (a *Adapter) Put(ctx context.Context, chunk domain.Chunk, data io.Reader) error {
	key := chunkKey(chunk.SessionID, chunk.Index)

	_, err := a.client.StatObject(ctx, a.config.BucketName, key, minio.StatObjectOptions{})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to stat chunk: %w", err)
	}

	opts := minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		UserMetadata: map[string]string{
			metaDigest:     chunk.Digest,
			metaReceivedAt: chunk.ReceivedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	info, err := a.client.PutObject(ctx, a.config.BucketName, key, data, chunk.Size, opts)
	if err != nil {
		return fmt.Errorf("failed to put chunk: %w", err)
	}
	if info.Size != chunk.Size {
		return fmt.Errorf("stored %d bytes for chunk %d, expected %d", info.Size, chunk.Index, chunk.Size)
	}
	return nil
}

// Open returns the chunk stream and the integrity record read from object metadata
func (a *Adapter) Open(ctx context.Context, sessionID uuid.UUID, index int) (io.ReadCloser, *domain.Chunk, error) {
	key := chunkKey(sessionID, index)

	info, err := a.client.StatObject(ctx, a.config.BucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, domain.ErrChunkNotFound
		}
		return nil, nil, fmt.Errorf("failed to stat chunk: %w", err)
	}

	record := &domain.Chunk{
		SessionID: sessionID,
		Index:     index,
		Size:      info.Size,
		Digest:    info.UserMetadata[metaDigest],
	}
	if at, parseErr := time.Parse(time.RFC3339Nano, info.UserMetadata[metaReceivedAt]); parseErr == nil {
		record.ReceivedAt = at
	}

	object, err := a.client.GetObject(ctx, a.config.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return object, record, nil
}

// DeleteSession removes every chunk object of the session
func (a *Adapter) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	objects := a.client.ListObjects(ctx, a.config.BucketName, minio.ListObjectsOptions{
		Prefix:    sessionPrefix(sessionID),
		Recursive: true,
	})

	var errs, listErrs []error
	for result := range a.client.RemoveObjects(ctx, a.config.BucketName, listed(objects, &listErrs), minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove %s: %w", result.ObjectName, result.Err))
	}
	// the removal stream is closed only after the listing was drained
	errs = append(errs, listErrs...)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to delete session chunks: %w", err)
	}

	a.logger.Debug("session chunks deleted", slog.String("session_id", sessionID.String()))
	return nil
}

// listed forwards listed objects, keeping listing errors out of the removal stream
func listed(in <-chan minio.ObjectInfo, errs *[]error) <-chan minio.ObjectInfo {
	out := make(chan minio.ObjectInfo)
	go func() {
		defer close(out)
		for obj := range in {
			if obj.Err != nil {
				*errs = append(*errs, obj.Err)
				continue
			}
			out <- obj
		}
	}()
	return out
}

// Create streams the artifact into the bucket while it is being written
func (a *Adapter) Create(ctx context.Context, sessionID uuid.UUID, filename string) (port.ArtifactWriter, error) {
	key := artifactPrefix + domain.ArtifactName(sessionID, filename)
	pr, pw := io.Pipe()

	w := &artifactWriter{pw: pw, key: key, result: make(chan error, 1)}
	go func() {
		_, err := a.client.PutObject(ctx, a.config.BucketName, key, pr, -1, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
			PartSize:    artifactPartSize,
		})
		pr.CloseWithError(err)
		w.result <- err
	}()
	return w, nil
}

// Remove deletes an artifact by key
func (a *Adapter) Remove(ctx context.Context, key string) error {
	if err := a.client.RemoveObject(ctx, a.config.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	a.logger.Info("artifact deleted",
		slog.String("key", key),
		slog.String("bucket", a.config.BucketName))
	return nil
}

// DiscardPartial aborts a multipart artifact upload that was never completed
func (a *Adapter) DiscardPartial(ctx context.Context, sessionID uuid.UUID, filename string) error {
	key := artifactPrefix + domain.ArtifactName(sessionID, filename)
	if err := a.client.RemoveIncompleteUpload(ctx, a.config.BucketName, key); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to remove incomplete upload: %w", err)
	}
	return nil
}

var errArtifactAborted = errors.New("artifact aborted")

type artifactWriter struct {
	pw     *io.PipeWriter
	key    string
	result chan error
	done   bool
}

func (w *artifactWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *artifactWriter) Commit() (string, error) {
	if w.done {
		return "", errors.New("artifact already closed")
	}
	w.done = true
	w.pw.Close()
	if err := <-w.result; err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}
	return w.key, nil
}

func (w *artifactWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.pw.CloseWithError(errArtifactAborted)
	// an upload failing on the aborted reader is expected
	<-w.result
	return nil
}
