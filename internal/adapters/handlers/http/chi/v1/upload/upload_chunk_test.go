package upload_test

import (
	handler "audio-upload/internal/adapters/handlers/http/chi/v1/upload"
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/service/upload"
	"bytes"
	"encoding/json"
	http2 "net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUploadChunkV1(t *testing.T) {
	chunkURL := func(id string, index string) string {
		return "/api/v1/uploads/" + id + "/chunks/" + index
	}

	t.Run("success - chunk stored", func(t *testing.T) {
		// Arrange
		sessionID := uuid.New()
		data := []byte("audio bytes")
		mockService := upload.NewMockUploadService()
		mockService.On("UploadChunk", mock.Anything, sessionID, userID, 2, data, "abc123").
			Return(&domain.ChunkUploadResult{
				Index:         2,
				Status:        domain.ChunkStatusUploaded,
				ReceivedCount: 3,
				TotalChunks:   5,
			}, nil)

		h := newTestRouter(mockService)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http2.MethodPut, chunkURL(sessionID.String(), "2"), bytes.NewReader(data))
		req.Header.Set(handler.UserIDHeader, userID)
		req.Header.Set(handler.ChunkDigestHeader, "abc123")

		// Act
		h.ServeHTTP(w, req)

		// Assert
		assert.Equal(t, http2.StatusOK, w.Code)
		var response handler.V1UploadChunkResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "uploaded", response.Status)
		assert.Equal(t, 3, response.ReceivedCount)
		assert.Equal(t, 5, response.TotalChunks)
		mockService.AssertExpectations(t)
	})

	t.Run("success - re-sent chunk", func(t *testing.T) {
		// Arrange
		sessionID := uuid.New()
		mockService := upload.NewMockUploadService()
		mockService.On("UploadChunk", mock.Anything, sessionID, userID, 0, mock.Anything, "").
			Return(&domain.ChunkUploadResult{Index: 0, Status: domain.ChunkStatusAlreadyUploaded, ReceivedCount: 1, TotalChunks: 2}, nil)

		h := newTestRouter(mockService)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http2.MethodPut, chunkURL(sessionID.String(), "0"), bytes.NewReader([]byte("x")))
		req.Header.Set(handler.UserIDHeader, userID)

		// Act
		h.ServeHTTP(w, req)

		// Assert
		assert.Equal(t, http2.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"already_uploaded"`)
	})

	t.Run("error - non numeric index", func(t *testing.T) {
		// Arrange
		mockService := upload.NewMockUploadService()
		h := newTestRouter(mockService)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http2.MethodPut, chunkURL(uuid.NewString(), "first"), bytes.NewReader([]byte("x")))
		req.Header.Set(handler.UserIDHeader, userID)

		// Act
		h.ServeHTTP(w, req)

		// Assert
		assert.Equal(t, http2.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "UploadChunk", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("error - invalid session id", func(t *testing.T) {
		// Arrange
		mockService := upload.NewMockUploadService()
		h := newTestRouter(mockService)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http2.MethodPut, chunkURL("not-a-uuid", "0"), bytes.NewReader([]byte("x")))
		req.Header.Set(handler.UserIDHeader, userID)

		// Act
		h.ServeHTTP(w, req)

		// Assert
		assert.Equal(t, http2.StatusBadRequest, w.Code)
	})

	t.Run("error - body above the limit", func(t *testing.T) {
		// Arrange
		mockService := upload.NewMockUploadService()
		h := newTestRouter(mockService)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http2.MethodPut, chunkURL(uuid.NewString(), "0"), bytes.NewReader(make([]byte, 2<<20)))
		req.Header.Set(handler.UserIDHeader, userID)

		// Act
		h.ServeHTTP(w, req)

		// Assert
		assert.Equal(t, http2.StatusRequestEntityTooLarge, w.Code)
		mockService.AssertNotCalled(t, "UploadChunk", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("error - size mismatch", func(t *testing.T) {
		// Arrange
		sessionID := uuid.New()
		mockService := upload.NewMockUploadService()
		mockService.On("UploadChunk", mock.Anything, sessionID, userID, 1, mock.Anything, "").
			Return((*domain.ChunkUploadResult)(nil), domain.ErrChunkSizeMismatch)

		h := newTestRouter(mockService)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http2.MethodPut, chunkURL(sessionID.String(), "1"), bytes.NewReader([]byte("short")))
		req.Header.Set(handler.UserIDHeader, userID)

		// Act
		h.ServeHTTP(w, req)

		// Assert
		assert.Equal(t, http2.StatusBadRequest, w.Code)
		mockService.AssertExpectations(t)
	})
}
