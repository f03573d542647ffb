package port

import (
	"audio-upload/internal/core/domain"
	"context"
	"io"

	"github.com/google/uuid"
)

// ChunkStore persists write-once chunk blobs with their integrity record
type ChunkStore interface {
	// Put stores data under (chunk.SessionID, chunk.Index). A partially
	// written chunk is never visible.
	Put(ctx context.Context, chunk domain.Chunk, data io.Reader) error
	// Open returns the blob and its integrity record, or domain.ErrChunkNotFound.
	Open(ctx context.Context, sessionID uuid.UUID, index int) (io.ReadCloser, *domain.Chunk, error)
	// DeleteSession reclaims every chunk of the session. Missing data is not an error.
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
}

// ArtifactStore holds assembled files, apart from the chunk scratch area
type ArtifactStore interface {
	Create(ctx context.Context, sessionID uuid.UUID, filename string) (ArtifactWriter, error)
	Remove(ctx context.Context, path string) error
	// DiscardPartial drops uncommitted artifact data of the session. Nothing left is not an error.
	DiscardPartial(ctx context.Context, sessionID uuid.UUID, filename string) error
}

// ArtifactWriter streams an artifact that only becomes visible on Commit
type ArtifactWriter interface {
	io.Writer
	// Commit publishes the artifact and returns its final path
	Commit() (string, error)
	// Abort discards everything written so far
	Abort() error
}
