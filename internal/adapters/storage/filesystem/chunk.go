package filesystem

import (
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// ChunkStore keeps chunks under <root>/<session_id>/.
// Blobs are content addressed (<index>.<sha256>.chunk) and published by rename;
// the <index>.json record is hard linked into place so only the first writer wins.
type ChunkStore struct {
	root   string
	logger *slog.Logger
}

var _ port.ChunkStore = (*ChunkStore)(nil)

// NewChunkStore creates the root directory if needed
func NewChunkStore(root string, logger *slog.Logger) (*ChunkStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk root: %w", err)
	}
	return &ChunkStore{root: root, logger: logger.With("component", "chunk_store")}, nil
}

func (s *ChunkStore) sessionDir(sessionID uuid.UUID) string {
	return filepath.Join(s.root, sessionID.String())
}

func (s *ChunkStore) recordPath(sessionID uuid.UUID, index int) string {
	return filepath.Join(s.sessionDir(sessionID), strconv.Itoa(index)+".json")
}

func (s *ChunkStore) blobPath(sessionID uuid.UUID, index int, digest string) string {
	return filepath.Join(s.sessionDir(sessionID), strconv.Itoa(index)+"."+digest+".chunk")
}

func (s *ChunkStore) Put(ctx context.Context, chunk domain.Chunk, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.sessionDir(chunk.SessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure session dir: %w", err)
	}

	recordPath := s.recordPath(chunk.SessionID, chunk.Index)
	if _, err := os.Stat(recordPath); err == nil {
		return nil
	}

	blobPath := s.blobPath(chunk.SessionID, chunk.Index, chunk.Digest)
	if err := writeFileAtomic(dir, blobPath, func(w io.Writer) error {
		n, err := io.Copy(w, data)
		if err != nil {
			return err
		}
		if n != chunk.Size {
			return fmt.Errorf("wrote %d bytes, expected %d", n, chunk.Size)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("write chunk %d: %w", chunk.Index, err)
	}

	record, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("encode chunk record: %w", err)
	}
	published, err := linkFileOnce(dir, recordPath, record)
	if err != nil {
		return fmt.Errorf("write chunk record %d: %w", chunk.Index, err)
	}
	if !published {
		// a concurrent writer registered this index first, keep its blob
		current, readErr := readRecord(recordPath)
		if readErr == nil && current.Digest != chunk.Digest {
			_ = os.Remove(blobPath)
		}
		s.logger.Debug("chunk already stored", "session_id", chunk.SessionID, "index", chunk.Index)
	}
	return nil
}

func (s *ChunkStore) Open(ctx context.Context, sessionID uuid.UUID, index int) (io.ReadCloser, *domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	record, err := readRecord(s.recordPath(sessionID, index))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, domain.ErrChunkNotFound
		}
		return nil, nil, err
	}

	f, err := os.Open(s.blobPath(sessionID, index, record.Digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: blob for chunk %d is missing", domain.ErrChunkNotFound, index)
		}
		return nil, nil, err
	}
	return f, record, nil
}

func (s *ChunkStore) DeleteSession(_ context.Context, sessionID uuid.UUID) error {
	if err := os.RemoveAll(s.sessionDir(sessionID)); err != nil {
		return fmt.Errorf("remove session chunks: %w", err)
	}
	return nil
}

func readRecord(path string) (*domain.Chunk, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record domain.Chunk
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode chunk record %s: %w", path, err)
	}
	return &record, nil
}
