package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType is a type that represents the type of a progress event
type EventType string

const (
	EventTypeChunkReceived   EventType = "chunk_received"
	EventTypeUploadCompleted EventType = "upload_completed"
	EventTypeUploadFailed    EventType = "upload_failed"
	EventTypeUploadCancelled EventType = "upload_cancelled"
	EventTypeUploadExpired   EventType = "upload_expired"
)

// ProgressEvent is a structured progress notification
type ProgressEvent struct {
	Type          EventType           `json:"type"`
	SessionID     uuid.UUID           `json:"session_id"`
	OwnerID       string              `json:"owner_id"`
	Index         int                 `json:"index,omitempty"`
	ReceivedCount int                 `json:"received_count"`
	TotalChunks   int                 `json:"total_chunks"`
	Status        UploadSessionStatus `json:"status"`
	FileDigest    string              `json:"file_digest,omitempty"`
	JobHandle     string              `json:"job_handle,omitempty"`
	Error         string              `json:"error,omitempty"`
	At            time.Time           `json:"at"`
}

// NewProgressEvent builds an event from the current session snapshot
func NewProgressEvent(eventType EventType, session *UploadSession) ProgressEvent {
	return ProgressEvent{
		Type:          eventType,
		SessionID:     session.ID,
		OwnerID:       session.OwnerID,
		ReceivedCount: session.ReceivedCount(),
		TotalChunks:   session.TotalChunks,
		Status:        session.Status,
		FileDigest:    session.FileDigest,
		JobHandle:     session.JobHandle,
		At:            time.Now().UTC(),
	}
}

// JobRequest is the handoff sent to the transcription pipeline
type JobRequest struct {
	JobHandle    string    `json:"job_handle"`
	SessionID    uuid.UUID `json:"session_id"`
	OwnerID      string    `json:"owner_id"`
	ArtifactPath string    `json:"artifact_path"`
	FileDigest   string    `json:"file_digest"`
	JobHint      string    `json:"job_hint,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
