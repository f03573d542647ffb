package repository

import (
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewTestSession builds an ACTIVE session owned by ownerID
func NewTestSession(ownerID string, totalSize, chunkSize int64, ttl time.Duration) domain.UploadSession {
	now := time.Now().UTC().Round(time.Microsecond)
	return domain.UploadSession{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		OriginalFilename: "interview.wav",
		TotalSize:        totalSize,
		ChunkSize:        chunkSize,
		TotalChunks:      domain.TotalChunksFor(totalSize, chunkSize),
		ReceivedChunks:   []int{},
		Status:           domain.UploadSessionStatusActive,
		JobHint:          "whisper-large",
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
		UpdatedAt:        now,
	}
}

// RunSessionStoreContract checks the behaviour every port.SessionStore must share.
// newStore must return an empty store.
func RunSessionStoreContract(t *testing.T, newStore func(t *testing.T) port.SessionStore) {
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		store := newStore(t)
		session := NewTestSession("owner-1", 2_500_000, 1_000_000, time.Hour)

		require.NoError(t, store.Create(ctx, session))

		saved, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, saved.ID)
		assert.Equal(t, "owner-1", saved.OwnerID)
		assert.Equal(t, 3, saved.TotalChunks)
		assert.Equal(t, int64(1_000_000), saved.ChunkSize)
		assert.Equal(t, "whisper-large", saved.JobHint)
		assert.Equal(t, domain.UploadSessionStatusActive, saved.Status)
		assert.Empty(t, saved.ReceivedChunks)
		assert.WithinDuration(t, session.ExpiresAt, saved.ExpiresAt, time.Second)
	})

	t.Run("Create twice", func(t *testing.T) {
		store := newStore(t)
		session := NewTestSession("owner-1", 10, 5, time.Hour)
		require.NoError(t, store.Create(ctx, session))

		err := store.Create(ctx, session)

		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("Get unknown session", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(ctx, uuid.New())

		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("AddReceivedChunk is idempotent", func(t *testing.T) {
		store := newStore(t)
		session := NewTestSession("owner-1", 30, 10, time.Hour)
		require.NoError(t, store.Create(ctx, session))

		present, count, err := store.AddReceivedChunk(ctx, session.ID, 2)
		require.NoError(t, err)
		assert.False(t, present)
		assert.Equal(t, 1, count)

		present, count, err = store.AddReceivedChunk(ctx, session.ID, 2)
		require.NoError(t, err)
		assert.True(t, present)
		assert.Equal(t, 1, count)

		_, count, err = store.AddReceivedChunk(ctx, session.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		saved, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2}, saved.ReceivedChunks)
	})

	t.Run("AddReceivedChunk concurrently", func(t *testing.T) {
		store := newStore(t)
		session := NewTestSession("owner-1", 160, 10, time.Hour)
		require.NoError(t, store.Create(ctx, session))

		var wg sync.WaitGroup
		for i := 0; i < session.TotalChunks; i++ {
			for range 2 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _, err := store.AddReceivedChunk(ctx, session.ID, i)
					assert.NoError(t, err)
				}()
			}
		}
		wg.Wait()

		saved, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.TotalChunks, saved.ReceivedCount())
		assert.True(t, saved.IsComplete())
	})

	t.Run("AddReceivedChunk rejects non active session", func(t *testing.T) {
		store := newStore(t)
		session := NewTestSession("owner-1", 30, 10, time.Hour)
		require.NoError(t, store.Create(ctx, session))
		ok, err := store.CompareAndSwapStatus(ctx, session.ID, domain.UploadSessionStatusActive, domain.UploadSessionStatusCancelled)
		require.NoError(t, err)
		require.True(t, ok)

		_, _, err = store.AddReceivedChunk(ctx, session.ID, 0)

		assert.ErrorIs(t, err, domain.ErrInvalidState)
		saved, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Empty(t, saved.ReceivedChunks)
	})

	t.Run("AddReceivedChunk rejects out of range index", func(t *testing.T) {
		store := newStore(t)
		session := NewTestSession("owner-1", 30, 10, time.Hour)
		require.NoError(t, store.Create(ctx, session))

		_, _, err := store.AddReceivedChunk(ctx, session.ID, 3)

		assert.ErrorIs(t, err, domain.ErrInvalidChunkIndex)
	})

	t.Run("CompareAndSwapStatus", func(t *testing.T) {
		store := newStore(t)
		session := NewTestSession("owner-1", 30, 10, time.Hour)
		require.NoError(t, store.Create(ctx, session))

		ok, err := store.CompareAndSwapStatus(ctx, session.ID, domain.UploadSessionStatusActive, domain.UploadSessionStatusAssembling)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.CompareAndSwapStatus(ctx, session.ID, domain.UploadSessionStatusActive, domain.UploadSessionStatusAssembling)
		require.NoError(t, err)
		assert.False(t, ok)

		saved, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.UploadSessionStatusAssembling, saved.Status)
	})

	t.Run("CompareAndSwapStatus single winner", func(t *testing.T) {
		store := newStore(t)
		session := NewTestSession("owner-1", 30, 10, time.Hour)
		require.NoError(t, store.Create(ctx, session))

		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		targets := []domain.UploadSessionStatus{
			domain.UploadSessionStatusAssembling,
			domain.UploadSessionStatusCancelled,
			domain.UploadSessionStatusExpired,
		}
		for i := 0; i < 12; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.CompareAndSwapStatus(ctx, session.ID, domain.UploadSessionStatusActive, targets[i%len(targets)])
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
	})

	t.Run("CompareAndSwapStatus rejects illegal edge", func(t *testing.T) {
		store := newStore(t)
		session := NewTestSession("owner-1", 30, 10, time.Hour)
		require.NoError(t, store.Create(ctx, session))

		ok, err := store.CompareAndSwapStatus(ctx, session.ID, domain.UploadSessionStatusActive, domain.UploadSessionStatusCompleted)

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.False(t, ok)
	})

	t.Run("CompareAndSwapStatus unknown session", func(t *testing.T) {
		store := newStore(t)

		_, err := store.CompareAndSwapStatus(ctx, uuid.New(), domain.UploadSessionStatusActive, domain.UploadSessionStatusCancelled)

		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("RecordAssembly and RecordJobHandle", func(t *testing.T) {
		store := newStore(t)
		session := NewTestSession("owner-1", 30, 10, time.Hour)
		require.NoError(t, store.Create(ctx, session))

		err := store.RecordAssembly(ctx, session.ID, "digest", "/artifacts/a.wav")
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		_, err = store.CompareAndSwapStatus(ctx, session.ID, domain.UploadSessionStatusActive, domain.UploadSessionStatusAssembling)
		require.NoError(t, err)
		require.NoError(t, store.RecordAssembly(ctx, session.ID, "digest", "/artifacts/a.wav"))
		require.NoError(t, store.RecordJobHandle(ctx, session.ID, "JOBS:1"))

		saved, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "digest", saved.FileDigest)
		assert.Equal(t, "/artifacts/a.wav", saved.ArtifactPath)
		assert.Equal(t, "JOBS:1", saved.JobHandle)
	})

	t.Run("FindExpired", func(t *testing.T) {
		store := newStore(t)
		live := NewTestSession("owner-1", 30, 10, time.Hour)
		stale := NewTestSession("owner-1", 30, 10, -time.Minute)
		done := NewTestSession("owner-1", 30, 10, -time.Minute)
		for _, s := range []domain.UploadSession{live, stale, done} {
			require.NoError(t, store.Create(ctx, s))
		}
		_, err := store.CompareAndSwapStatus(ctx, done.ID, domain.UploadSessionStatusActive, domain.UploadSessionStatusAssembling)
		require.NoError(t, err)
		_, err = store.CompareAndSwapStatus(ctx, done.ID, domain.UploadSessionStatusAssembling, domain.UploadSessionStatusCompleted)
		require.NoError(t, err)

		expired, err := store.FindExpired(ctx, time.Now())

		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, stale.ID, expired[0].ID)
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		session := NewTestSession("owner-1", 30, 10, time.Hour)
		require.NoError(t, store.Create(ctx, session))
		_, _, err := store.AddReceivedChunk(ctx, session.ID, 1)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, session.ID))

		_, err = store.Get(ctx, session.ID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}
