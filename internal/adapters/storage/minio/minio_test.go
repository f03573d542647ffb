package minio_test

import (
	"audio-upload/internal/adapters/storage/minio"
	"audio-upload/internal/config"
	"audio-upload/internal/core/domain"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAccessKey = "minioadmin"
	testSecretKey = "minioadmin"
	testBucket    = "test-bucket"
)

func setupContainer(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     testAccessKey,
			"MINIO_ROOT_PASSWORD": testSecretKey,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000"),
	}
	minioContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := minioContainer.Host(ctx)
	require.NoError(t, err)
	port, err := minioContainer.MappedPort(ctx, "9000")
	require.NoError(t, err)

	cleanup := func() {
		if err := minioContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), cleanup
}

func createAdapter(t *testing.T, ctx context.Context, endpoint string) *minio.Adapter {
	t.Helper()
	cfg := config.MinioConfig{
		Endpoint:   endpoint,
		AccessKey:  testAccessKey,
		SecretKey:  testSecretKey,
		BucketName: testBucket,
	}

	adapter, err := minio.NewAdapter(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NotNil(t, adapter)
	return adapter
}

func chunkOf(sessionID uuid.UUID, index int, data []byte) domain.Chunk {
	sum := sha256.Sum256(data)
	return domain.Chunk{
		SessionID:  sessionID,
		Index:      index,
		Size:       int64(len(data)),
		Digest:     hex.EncodeToString(sum[:]),
		ReceivedAt: time.Now().UTC(),
	}
}

func TestAdapter(t *testing.T) {
	endpoint, cleanup := setupContainer(t)
	defer cleanup()
	ctx := context.Background()
	adapter := createAdapter(t, ctx, endpoint)

	t.Run("Put and Open", func(t *testing.T) {
		// Arrange
		sessionID := uuid.New()
		data := bytes.Repeat([]byte("a"), 1024)
		chunk := chunkOf(sessionID, 0, data)

		// Act
		require.NoError(t, adapter.Put(ctx, chunk, bytes.NewReader(data)))
		reader, record, err := adapter.Open(ctx, sessionID, 0)

		// Assert
		require.NoError(t, err)
		defer reader.Close()
		got, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, data, got)
		assert.Equal(t, chunk.Digest, record.Digest)
		assert.Equal(t, int64(1024), record.Size)
		assert.WithinDuration(t, chunk.ReceivedAt, record.ReceivedAt, time.Second)
	})

	t.Run("Put is write once", func(t *testing.T) {
		sessionID := uuid.New()
		first := []byte("first")
		second := []byte("other")
		require.NoError(t, adapter.Put(ctx, chunkOf(sessionID, 2, first), bytes.NewReader(first)))

		require.NoError(t, adapter.Put(ctx, chunkOf(sessionID, 2, second), bytes.NewReader(second)))

		reader, _, err := adapter.Open(ctx, sessionID, 2)
		require.NoError(t, err)
		defer reader.Close()
		got, _ := io.ReadAll(reader)
		assert.Equal(t, first, got)
	})

	t.Run("Open missing chunk", func(t *testing.T) {
		_, _, err := adapter.Open(ctx, uuid.New(), 0)

		assert.ErrorIs(t, err, domain.ErrChunkNotFound)
	})

	t.Run("DeleteSession", func(t *testing.T) {
		// Arrange
		sessionID := uuid.New()
		other := uuid.New()
		for i := 0; i < 3; i++ {
			data := []byte(fmt.Sprintf("chunk-%d", i))
			require.NoError(t, adapter.Put(ctx, chunkOf(sessionID, i, data), bytes.NewReader(data)))
		}
		keep := []byte("keep")
		require.NoError(t, adapter.Put(ctx, chunkOf(other, 0, keep), bytes.NewReader(keep)))

		// Act
		err := adapter.DeleteSession(ctx, sessionID)

		// Assert
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, _, err := adapter.Open(ctx, sessionID, i)
			assert.ErrorIs(t, err, domain.ErrChunkNotFound)
		}
		reader, _, err := adapter.Open(ctx, other, 0)
		require.NoError(t, err)
		reader.Close()
	})

	t.Run("Artifact commit", func(t *testing.T) {
		// Arrange
		sessionID := uuid.New()
		w, err := adapter.Create(ctx, sessionID, "lecture.ogg")
		require.NoError(t, err)

		// Act
		_, err = w.Write([]byte("hello "))
		require.NoError(t, err)
		_, err = w.Write([]byte("world"))
		require.NoError(t, err)
		key, err := w.Commit()

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "artifacts/"+sessionID.String()+"_lecture.ogg", key)
		require.NoError(t, adapter.Remove(ctx, key))
	})

	t.Run("Artifact abort", func(t *testing.T) {
		w, err := adapter.Create(ctx, uuid.New(), "lecture.ogg")
		require.NoError(t, err)
		_, err = w.Write([]byte("partial"))
		require.NoError(t, err)

		assert.NoError(t, w.Abort())
		_, err = w.Commit()
		assert.Error(t, err)
	})

	t.Run("DiscardPartial without pending upload", func(t *testing.T) {
		assert.NoError(t, adapter.DiscardPartial(ctx, uuid.New(), "lecture.ogg"))
	})
}
