package filesystem_test

import (
	"audio-upload/internal/adapters/storage/filesystem"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactStore_Commit(t *testing.T) {
	// Arrange
	ctx := context.Background()
	root := t.TempDir()
	store, err := filesystem.NewArtifactStore(root)
	require.NoError(t, err)
	sessionID := uuid.New()

	// Act
	w, err := store.Create(ctx, sessionID, "talk.mp3")
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = w.Write([]byte("def"))
	require.NoError(t, err)
	path, err := w.Commit()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, sessionID.String()+"_talk.mp3"), path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(content))
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestArtifactStore_Abort(t *testing.T) {
	// Arrange
	ctx := context.Background()
	root := t.TempDir()
	store, err := filesystem.NewArtifactStore(root)
	require.NoError(t, err)

	w, err := store.Create(ctx, uuid.New(), "talk.mp3")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	// Act
	err = w.Abort()

	// Assert
	require.NoError(t, err)
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = w.Commit()
	assert.Error(t, err)
}

func TestArtifactStore_Remove(t *testing.T) {
	ctx := context.Background()
	store, err := filesystem.NewArtifactStore(t.TempDir())
	require.NoError(t, err)
	w, err := store.Create(ctx, uuid.New(), "a.wav")
	require.NoError(t, err)
	path, err := w.Commit()
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, path))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	assert.NoError(t, store.Remove(ctx, path))
}

func TestArtifactStore_DiscardPartial(t *testing.T) {
	// Arrange
	ctx := context.Background()
	root := t.TempDir()
	store, err := filesystem.NewArtifactStore(root)
	require.NoError(t, err)
	crashed, other := uuid.New(), uuid.New()

	w, err := store.Create(ctx, crashed, "talk.mp3")
	require.NoError(t, err)
	_, err = w.Write([]byte("half"))
	require.NoError(t, err)
	_, err = store.Create(ctx, other, "talk.mp3")
	require.NoError(t, err)

	// Act
	err = store.DiscardPartial(ctx, crashed, "talk.mp3")

	// Assert
	require.NoError(t, err)
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), other.String())
	assert.NoError(t, store.DiscardPartial(ctx, crashed, "talk.mp3"))
}
