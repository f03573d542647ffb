package boltdb_test

import (
	"audio-upload/internal/adapters/repository"
	"audio-upload/internal/adapters/repository/boltdb"
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) port.SessionStore {
	t.Helper()
	store, err := boltdb.NewSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionStore(t *testing.T) {
	repository.RunSessionStoreContract(t, newStore)
}

func TestSessionStore_SurvivesReopen(t *testing.T) {
	// Arrange
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	store, err := boltdb.NewSessionStore(path)
	require.NoError(t, err)
	session := repository.NewTestSession("owner-1", 30, 10, time.Hour)
	require.NoError(t, store.Create(ctx, session))
	_, _, err = store.AddReceivedChunk(ctx, session.ID, 1)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Act
	reopened, err := boltdb.NewSessionStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	saved, err := reopened.Get(ctx, session.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []int{1}, saved.ReceivedChunks)
	assert.Equal(t, domain.UploadSessionStatusActive, saved.Status)
}
