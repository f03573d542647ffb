package upload_test

import (
	"audio-upload/internal/adapters/eventbroker"
	"audio-upload/internal/adapters/repository/boltdb"
	"audio-upload/internal/adapters/storage/filesystem"
	"audio-upload/internal/config"
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"audio-upload/internal/core/service/upload"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const owner = "user-42"

var testCfg = config.UploadConfig{
	MaxFileSize:      1 << 30,
	DefaultChunkSize: 4,
	MinChunkSize:     1,
	MaxChunkSize:     8 << 20,
	SessionTTL:       time.Hour,
	MissingCap:       100,
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// hookedChunks lets a test interleave calls with chunk writes and reads
type hookedChunks struct {
	port.ChunkStore
	afterPut   func(index int)
	beforeOpen func(index int)
}

func (h *hookedChunks) Put(ctx context.Context, chunk domain.Chunk, data io.Reader) error {
	if err := h.ChunkStore.Put(ctx, chunk, data); err != nil {
		return err
	}
	if h.afterPut != nil {
		h.afterPut(chunk.Index)
	}
	return nil
}

func (h *hookedChunks) Open(ctx context.Context, sessionID uuid.UUID, index int) (io.ReadCloser, *domain.Chunk, error) {
	if h.beforeOpen != nil {
		h.beforeOpen(index)
	}
	return h.ChunkStore.Open(ctx, sessionID, index)
}

// hookedSessions fails the next Get calls once armed
type hookedSessions struct {
	port.SessionStore
	mu        sync.Mutex
	failGets  int
	afterSwap func(next domain.UploadSessionStatus, won bool)
}

func (h *hookedSessions) Get(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	h.mu.Lock()
	if h.failGets > 0 {
		h.failGets--
		h.mu.Unlock()
		return nil, errStoreUnavailable
	}
	h.mu.Unlock()
	return h.SessionStore.Get(ctx, id)
}

func (h *hookedSessions) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next domain.UploadSessionStatus) (bool, error) {
	won, err := h.SessionStore.CompareAndSwapStatus(ctx, id, expected, next)
	if err == nil && h.afterSwap != nil {
		h.afterSwap(next, won)
	}
	return won, err
}

func (h *hookedSessions) failNextGets(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failGets = n
}

var errStoreUnavailable = errors.New("store unavailable")

type harness struct {
	service      port.UploadService
	sessions     *hookedSessions
	chunks       *hookedChunks
	chunkRoot    string
	artifactRoot string
	notifier     *eventbroker.MockNotifier
	pipeline     *eventbroker.MockJobPipeline
	clock        *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, testCfg)
}

func newHarnessWith(t *testing.T, cfg config.UploadConfig) *harness {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sessions, err := boltdb.NewSessionStore(filepath.Join(dir, "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	chunkRoot := filepath.Join(dir, "chunks")
	chunkStore, err := filesystem.NewChunkStore(chunkRoot, logger)
	require.NoError(t, err)
	artifactRoot := filepath.Join(dir, "artifacts")
	artifacts, err := filesystem.NewArtifactStore(artifactRoot)
	require.NoError(t, err)

	notifier := eventbroker.NewMockNotifier()
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()
	pipeline := eventbroker.NewMockJobPipeline()

	h := &harness{
		sessions:     &hookedSessions{SessionStore: sessions},
		chunks:       &hookedChunks{ChunkStore: chunkStore},
		chunkRoot:    chunkRoot,
		artifactRoot: artifactRoot,
		notifier:     notifier,
		pipeline:     pipeline,
		clock:        &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.service = upload.NewUploadService(
		h.sessions, h.chunks, artifacts, notifier, pipeline, cfg, logger,
		upload.WithClock(h.clock.Now),
		upload.WithBackgroundRunner(func(task func()) { task() }),
	)
	return h
}

func (h *harness) init(t *testing.T, totalSize, chunkSize int64) *domain.InitUploadResult {
	t.Helper()
	res, err := h.service.InitUpload(context.Background(), domain.InitUploadRequest{
		OwnerID:       owner,
		Filename:      "standup.wav",
		TotalSize:     totalSize,
		ChunkSizeHint: chunkSize,
		JobHint:       "whisper-large",
	})
	require.NoError(t, err)
	return res
}

func (h *harness) put(t *testing.T, sessionID uuid.UUID, index int, data []byte) *domain.ChunkUploadResult {
	t.Helper()
	res, err := h.service.UploadChunk(context.Background(), sessionID, owner, index, data, "")
	require.NoError(t, err)
	return res
}

func (h *harness) status(t *testing.T, sessionID uuid.UUID) domain.UploadSessionStatus {
	t.Helper()
	session, err := h.sessions.Get(context.Background(), sessionID)
	require.NoError(t, err)
	return session.Status
}

// payload returns deterministic bytes split into chunkSize pieces
func payload(totalSize, chunkSize int) ([]byte, [][]byte) {
	data := make([]byte, totalSize)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	var parts [][]byte
	for off := 0; off < totalSize; off += chunkSize {
		end := min(off+chunkSize, totalSize)
		parts = append(parts, data[off:end])
	}
	return data, parts
}

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
