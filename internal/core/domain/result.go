package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChunkUploadStatus tells whether a chunk write was new or a re-send
type ChunkUploadStatus string

const (
	ChunkStatusUploaded        ChunkUploadStatus = "uploaded"
	ChunkStatusAlreadyUploaded ChunkUploadStatus = "already_uploaded"
)

// InitUploadRequest carries the parameters of a new upload
type InitUploadRequest struct {
	OwnerID       string
	Filename      string
	TotalSize     int64
	ChunkSizeHint int64
	JobHint       string
}

// InitUploadResult is returned once the session is created
type InitUploadResult struct {
	SessionID   uuid.UUID
	ChunkSize   int64
	TotalChunks int
	ExpiresAt   time.Time
}

// ChunkUploadResult is returned for every accepted chunk
type ChunkUploadResult struct {
	Index         int
	Status        ChunkUploadStatus
	ReceivedCount int
	TotalChunks   int
}

// FinalizeResult is either a completed assembly or the list of gaps.
// Status is UploadSessionStatusActive with Missing set while chunks are outstanding.
type FinalizeResult struct {
	Status     UploadSessionStatus
	Missing    []int
	JobHandle  string
	FileDigest string
}

// Incomplete reports whether finalize found missing chunks
func (r *FinalizeResult) Incomplete() bool {
	return r.Status == UploadSessionStatusActive
}

// StatusResult is a read-only snapshot of a session
type StatusResult struct {
	Status        UploadSessionStatus
	ReceivedCount int
	TotalChunks   int
	Missing       []int
	ExpiresAt     time.Time
	FileDigest    string
	JobHandle     string
}
