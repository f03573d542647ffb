package upload

import "net/http"

// CancelV1 is the function that handles Cancel
func (h *HandlerV1) CancelV1(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	if err := h.uploadService.Cancel(r.Context(), id, ownerID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
