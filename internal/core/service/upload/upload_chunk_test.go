package upload_test

import (
	"audio-upload/internal/core/domain"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUploadService_UploadChunk_Nominal(t *testing.T) {
	// Arrange
	h := newHarness(t)
	res := h.init(t, 10, 4)
	_, parts := payload(10, 4)

	// Act
	got := h.put(t, res.SessionID, 2, parts[2])

	// Assert
	assert.Equal(t, domain.ChunkStatusUploaded, got.Status)
	assert.Equal(t, 1, got.ReceivedCount)
	assert.Equal(t, 3, got.TotalChunks)
	h.notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(e domain.ProgressEvent) bool {
		return e.Type == domain.EventTypeChunkReceived && e.Index == 2 && e.ReceivedCount == 1 && e.TotalChunks == 3
	}))
}

func TestUploadService_UploadChunk_Idempotent(t *testing.T) {
	// Arrange
	h := newHarness(t)
	res := h.init(t, 10, 4)
	_, parts := payload(10, 4)
	h.put(t, res.SessionID, 1, parts[1])

	// Act
	again := h.put(t, res.SessionID, 1, parts[1])

	// Assert
	assert.Equal(t, domain.ChunkStatusAlreadyUploaded, again.Status)
	assert.Equal(t, 1, again.ReceivedCount)
	session, err := h.sessions.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, session.ReceivedChunks)
}

func TestUploadService_UploadChunk_Concurrent(t *testing.T) {
	// Arrange
	h := newHarness(t)
	res := h.init(t, 64, 4)
	_, parts := payload(64, 4)

	// Act
	var wg sync.WaitGroup
	for i, part := range parts {
		for range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.service.UploadChunk(context.Background(), res.SessionID, owner, i, part, "")
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	// Assert
	session, err := h.sessions.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 16, session.ReceivedCount())
	assert.True(t, session.IsComplete())
}

func TestUploadService_UploadChunk_InvalidIndex(t *testing.T) {
	h := newHarness(t)
	res := h.init(t, 10, 4)

	for _, index := range []int{-1, 3, 100} {
		_, err := h.service.UploadChunk(context.Background(), res.SessionID, owner, index, []byte("abcd"), "")
		assert.ErrorIs(t, err, domain.ErrInvalidChunkIndex, "index %d", index)
	}
}

func TestUploadService_UploadChunk_SizeMismatch(t *testing.T) {
	h := newHarness(t)
	res := h.init(t, 10, 4)

	_, err := h.service.UploadChunk(context.Background(), res.SessionID, owner, 0, []byte("abc"), "")
	assert.ErrorIs(t, err, domain.ErrChunkSizeMismatch)

	// the last chunk carries the remainder only
	_, err = h.service.UploadChunk(context.Background(), res.SessionID, owner, 2, []byte("abcd"), "")
	assert.ErrorIs(t, err, domain.ErrChunkSizeMismatch)

	_, err = h.service.UploadChunk(context.Background(), res.SessionID, owner, 2, []byte("ab"), "")
	assert.NoError(t, err)
}

func TestUploadService_UploadChunk_ClientDigest(t *testing.T) {
	// Arrange
	h := newHarness(t)
	res := h.init(t, 8, 4)
	_, parts := payload(8, 4)

	// Act
	_, badErr := h.service.UploadChunk(context.Background(), res.SessionID, owner, 0, parts[0], digestOf([]byte("nope")))
	ok, okErr := h.service.UploadChunk(context.Background(), res.SessionID, owner, 1, parts[1], strings.ToUpper(digestOf(parts[1])))

	// Assert
	assert.ErrorIs(t, badErr, domain.ErrChecksumMismatch)
	require.NoError(t, okErr)
	assert.Equal(t, domain.ChunkStatusUploaded, ok.Status)
	session, err := h.sessions.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, session.ReceivedChunks)
}

func TestUploadService_UploadChunk_NotFoundAndAccessDenied(t *testing.T) {
	h := newHarness(t)
	res := h.init(t, 8, 4)

	_, err := h.service.UploadChunk(context.Background(), uuid.New(), owner, 0, []byte("abcd"), "")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = h.service.UploadChunk(context.Background(), res.SessionID, "someone-else", 0, []byte("abcd"), "")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestUploadService_UploadChunk_Expired(t *testing.T) {
	// Arrange
	h := newHarness(t)
	res := h.init(t, 8, 4)
	h.clock.Advance(2 * time.Hour)

	// Act
	_, err := h.service.UploadChunk(context.Background(), res.SessionID, owner, 0, []byte("abcd"), "")

	// Assert
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Equal(t, domain.UploadSessionStatusExpired, h.status(t, res.SessionID))
	h.notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(e domain.ProgressEvent) bool {
		return e.Type == domain.EventTypeUploadExpired && e.SessionID == res.SessionID
	}))
}

func TestUploadService_UploadChunk_CancelledWhileWriting(t *testing.T) {
	// Arrange
	h := newHarness(t)
	res := h.init(t, 8, 4)
	_, parts := payload(8, 4)
	h.chunks.afterPut = func(int) {
		require.NoError(t, h.service.Cancel(context.Background(), res.SessionID, owner))
	}

	// Act
	_, err := h.service.UploadChunk(context.Background(), res.SessionID, owner, 0, parts[0], "")

	// Assert
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	session, getErr := h.sessions.Get(context.Background(), res.SessionID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.UploadSessionStatusCancelled, session.Status)
	assert.Empty(t, session.ReceivedChunks)
	_, _, openErr := h.chunks.Open(context.Background(), res.SessionID, 0)
	assert.ErrorIs(t, openErr, domain.ErrChunkNotFound)
}

func TestUploadService_UploadChunk_NotifyFailureIsIgnored(t *testing.T) {
	// Arrange
	h := newHarness(t)
	h.notifier.ExpectedCalls = nil
	h.notifier.On("Notify", mock.Anything, mock.Anything).Return(assert.AnError)
	res := h.init(t, 8, 4)
	_, parts := payload(8, 4)

	// Act
	got, err := h.service.UploadChunk(context.Background(), res.SessionID, owner, 0, parts[0], "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkStatusUploaded, got.Status)
}

func TestUploadService_UploadChunk_DuplicateDuringAssembly(t *testing.T) {
	// Arrange
	h := newHarness(t)
	res := h.init(t, 12, 4)
	data, parts := payload(12, 4)
	h.put(t, res.SessionID, 0, parts[0])
	h.put(t, res.SessionID, 2, parts[2])
	h.pipeline.On("Submit", mock.Anything, mock.Anything).Return("TRANSCRIPTION_JOBS:9", nil).Once()

	stalled, resume, lateDone := make(chan struct{}), make(chan struct{}), make(chan struct{})
	var stalling, opening atomic.Bool
	h.chunks.afterPut = func(index int) {
		if index == 1 && stalling.CompareAndSwap(false, true) {
			close(stalled)
			<-resume
		}
	}
	// the stalled duplicate registers only once assembly is reading chunk files
	h.chunks.beforeOpen = func(index int) {
		if index == 1 && opening.CompareAndSwap(false, true) {
			close(resume)
			<-lateDone
		}
	}

	var late *domain.ChunkUploadResult
	var lateErr error
	go func() {
		defer close(lateDone)
		late, lateErr = h.service.UploadChunk(context.Background(), res.SessionID, owner, 1, parts[1], "")
	}()
	<-stalled
	h.put(t, res.SessionID, 1, parts[1])

	// Act
	got, err := h.service.Finalize(context.Background(), res.SessionID, owner)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.UploadSessionStatusCompleted, got.Status)
	assert.Equal(t, digestOf(data), got.FileDigest)
	require.NoError(t, lateErr)
	assert.Equal(t, domain.ChunkStatusAlreadyUploaded, late.Status)
	assert.Equal(t, 3, late.ReceivedCount)
	assert.Equal(t, domain.UploadSessionStatusCompleted, h.status(t, res.SessionID))
}
