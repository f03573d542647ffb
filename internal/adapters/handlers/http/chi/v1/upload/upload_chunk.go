package upload

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// V1UploadChunkResponse is the response to a chunk upload
type V1UploadChunkResponse struct {
	Index         int    `json:"index"`
	Status        string `json:"status"`
	ReceivedCount int    `json:"received_count"`
	TotalChunks   int    `json:"total_chunks"`
}

// UploadChunkV1 stores the raw request body as one chunk
func (h *HandlerV1) UploadChunkV1(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid chunk index", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "chunk too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Error("error reading chunk body", "session_id", id, "index", index, "error", err)
		http.Error(w, "error reading chunk body", http.StatusBadRequest)
		return
	}

	res, err := h.uploadService.UploadChunk(r.Context(), id, ownerID(r), index, data, r.Header.Get(ChunkDigestHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, V1UploadChunkResponse{
		Index:         res.Index,
		Status:        string(res.Status),
		ReceivedCount: res.ReceivedCount,
		TotalChunks:   res.TotalChunks,
	})
}
