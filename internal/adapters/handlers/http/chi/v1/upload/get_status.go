package upload

import (
	"net/http"
	"time"
)

// V1GetStatusResponse is the response to get status
type V1GetStatusResponse struct {
	Status        string    `json:"status"`
	ReceivedCount int       `json:"received_count"`
	TotalChunks   int       `json:"total_chunks"`
	Missing       []int     `json:"missing"`
	ExpiresAt     time.Time `json:"expires_at"`
	FileDigest    string    `json:"file_digest,omitempty"`
	JobHandle     string    `json:"job_handle,omitempty"`
}

// GetStatusV1 is the function that handles GetStatus
func (h *HandlerV1) GetStatusV1(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	res, err := h.uploadService.GetStatus(r.Context(), id, ownerID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	missing := res.Missing
	if missing == nil {
		missing = []int{}
	}
	h.writeJSON(w, http.StatusOK, V1GetStatusResponse{
		Status:        string(res.Status),
		ReceivedCount: res.ReceivedCount,
		TotalChunks:   res.TotalChunks,
		Missing:       missing,
		ExpiresAt:     res.ExpiresAt,
		FileDigest:    res.FileDigest,
		JobHandle:     res.JobHandle,
	})
}
