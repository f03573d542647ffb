package upload

import (
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserIDHeader carries the caller identity set by the upstream gateway
const UserIDHeader = "X-User-ID"

// ChunkDigestHeader optionally carries the hex sha256 of a chunk body
const ChunkDigestHeader = "X-Chunk-SHA256"

// HandlerV1 is the handler for v1 uploads routes
type HandlerV1 struct {
	uploadService port.UploadService
	logger        *slog.Logger
}

// NewUploadHandlerV1 creates HandlerV1
func NewUploadHandlerV1(service port.UploadService, logger *slog.Logger) *HandlerV1 {
	return &HandlerV1{
		uploadService: service,
		logger:        logger,
	}
}

// Routes exposes handler routes
func (h *HandlerV1) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(requireUserID)

	router.Post("/", h.InitUploadV1)
	router.Put("/{sessionID}/chunks/{index}", h.UploadChunkV1)
	router.Post("/{sessionID}/finalize", h.FinalizeV1)
	router.Get("/{sessionID}", h.GetStatusV1)
	router.Delete("/{sessionID}", h.CancelV1)

	return router
}

func requireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(UserIDHeader) == "" {
			http.Error(w, "missing "+UserIDHeader+" header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ownerID(r *http.Request) string {
	return r.Header.Get(UserIDHeader)
}

func sessionID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "sessionID"))
}

// writeError maps the domain taxonomy onto status codes
func (h *HandlerV1) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, "upload session not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrAccessDenied):
		http.Error(w, "access denied", http.StatusForbidden)
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidChunkIndex),
		errors.Is(err, domain.ErrChunkSizeMismatch), errors.Is(err, domain.ErrChecksumMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrSessionExpired):
		http.Error(w, "upload session expired", http.StatusGone)
	case errors.Is(err, domain.ErrJobSubmission):
		h.logger.Error("job submission failed", "path", r.URL.Path, "error", err)
		http.Error(w, "job pipeline unavailable", http.StatusBadGateway)
	case errors.Is(err, domain.ErrAssemblyFailure):
		h.logger.Error("assembly failed", "path", r.URL.Path, "error", err)
		http.Error(w, "assembly failed", http.StatusInternalServerError)
	default:
		h.logger.Error("upload request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *HandlerV1) writeJSON(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("error encoding response", "error", err)
	}
}
