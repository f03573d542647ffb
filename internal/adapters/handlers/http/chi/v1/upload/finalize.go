package upload

import (
	"audio-upload/internal/core/domain"
	"context"
	"errors"
	"net/http"
)

// V1FinalizeResponse is the response to finalize. Status is "incomplete" with
// Missing set while chunks are outstanding.
type V1FinalizeResponse struct {
	Status     string `json:"status"`
	Missing    []int  `json:"missing,omitempty"`
	JobHandle  string `json:"job_handle,omitempty"`
	FileDigest string `json:"file_digest,omitempty"`
}

// FinalizeV1 is the function that handles Finalize
func (h *HandlerV1) FinalizeV1(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	res, err := h.uploadService.Finalize(r.Context(), id, ownerID(r))
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrAssemblyFailure) {
		// assembly outlived the request and keeps running
		h.writeJSON(w, http.StatusAccepted, V1FinalizeResponse{Status: string(domain.UploadSessionStatusAssembling)})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	switch {
	case res.Incomplete():
		h.writeJSON(w, http.StatusOK, V1FinalizeResponse{Status: "incomplete", Missing: res.Missing})
	case res.Status == domain.UploadSessionStatusAssembling:
		h.writeJSON(w, http.StatusAccepted, V1FinalizeResponse{Status: string(res.Status)})
	default:
		h.writeJSON(w, http.StatusOK, V1FinalizeResponse{
			Status:     string(res.Status),
			JobHandle:  res.JobHandle,
			FileDigest: res.FileDigest,
		})
	}
}
