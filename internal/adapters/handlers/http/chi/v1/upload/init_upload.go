package upload

import (
	"audio-upload/internal/core/domain"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// V1InitUploadRequest is the request to open an upload session
type V1InitUploadRequest struct {
	Filename  string `json:"filename"`
	TotalSize int64  `json:"total_size"`
	ChunkSize int64  `json:"chunk_size,omitempty"`
	JobHint   string `json:"job_hint,omitempty"`
}

// V1InitUploadResponse is the response to open an upload session
type V1InitUploadResponse struct {
	SessionID   uuid.UUID `json:"session_id"`
	ChunkSize   int64     `json:"chunk_size"`
	TotalChunks int       `json:"total_chunks"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// InitUploadV1 is the function that handles InitUpload
func (h *HandlerV1) InitUploadV1(w http.ResponseWriter, r *http.Request) {
	var req V1InitUploadRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("error decoding init upload request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.uploadService.InitUpload(r.Context(), domain.InitUploadRequest{
		OwnerID:       ownerID(r),
		Filename:      req.Filename,
		TotalSize:     req.TotalSize,
		ChunkSizeHint: req.ChunkSize,
		JobHint:       req.JobHint,
	})
	switch {
	case err != nil:
		h.writeError(w, r, err)
	case res == nil:
		http.Error(w, "upload session is nil", http.StatusInternalServerError)
	default:
		h.writeJSON(w, http.StatusCreated, V1InitUploadResponse{
			SessionID:   res.SessionID,
			ChunkSize:   res.ChunkSize,
			TotalChunks: res.TotalChunks,
			ExpiresAt:   res.ExpiresAt,
		})
	}
}
