package filesystem

import (
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ArtifactStore writes assembled files to <root>/<session_id>_<filename>
type ArtifactStore struct {
	root string
}

var _ port.ArtifactStore = (*ArtifactStore)(nil)

func NewArtifactStore(root string) (*ArtifactStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &ArtifactStore{root: root}, nil
}

func (s *ArtifactStore) Create(ctx context.Context, sessionID uuid.UUID, filename string) (port.ArtifactWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	final := filepath.Join(s.root, domain.ArtifactName(sessionID, filename))
	f, err := os.CreateTemp(s.root, partialPattern(sessionID))
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}
	return &artifactWriter{File: f, dir: s.root, final: final}, nil
}

func (s *ArtifactStore) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}

// DiscardPartial removes temp files left by an assembler that never committed
func (s *ArtifactStore) DiscardPartial(_ context.Context, sessionID uuid.UUID, _ string) error {
	matches, err := filepath.Glob(filepath.Join(s.root, partialPattern(sessionID)))
	if err != nil {
		return fmt.Errorf("list partial artifacts: %w", err)
	}
	var errs []error
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func partialPattern(sessionID uuid.UUID) string {
	return "." + sessionID.String() + ".*.partial"
}

type artifactWriter struct {
	*os.File
	dir   string
	final string
	done  bool
}

// Commit makes the artifact visible under its final name
func (w *artifactWriter) Commit() (string, error) {
	if w.done {
		return "", errors.New("artifact already closed")
	}
	w.done = true

	tmpPath := w.File.Name()
	if err := w.File.Sync(); err != nil {
		w.discard()
		return "", fmt.Errorf("sync artifact: %w", err)
	}
	if err := w.File.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpPath, w.final); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	if err := syncDir(w.dir); err != nil {
		return "", fmt.Errorf("sync artifact dir: %w", err)
	}
	return w.final, nil
}

func (w *artifactWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.discard()
}

func (w *artifactWriter) discard() error {
	_ = w.File.Close()
	if err := os.Remove(w.File.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
