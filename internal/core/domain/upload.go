package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// UploadSessionStatus represents the status of an upload session
type UploadSessionStatus string

const (
	UploadSessionStatusActive     UploadSessionStatus = "active"
	UploadSessionStatusAssembling UploadSessionStatus = "assembling"
	UploadSessionStatusCompleted  UploadSessionStatus = "completed"
	UploadSessionStatusFailed     UploadSessionStatus = "failed"
	UploadSessionStatusCancelled  UploadSessionStatus = "cancelled"
	UploadSessionStatusExpired    UploadSessionStatus = "expired"
)

// transitions lists every legal edge of the session state machine.
var transitions = map[UploadSessionStatus][]UploadSessionStatus{
	UploadSessionStatusActive: {
		UploadSessionStatusAssembling,
		UploadSessionStatusCancelled,
		UploadSessionStatusExpired,
	},
	UploadSessionStatusAssembling: {
		UploadSessionStatusCompleted,
		UploadSessionStatusFailed,
		UploadSessionStatusCancelled,
	},
}

// ParseUploadSessionStatus parses a stored status value
func ParseUploadSessionStatus(s string) (UploadSessionStatus, error) {
	status := UploadSessionStatus(s)
	switch status {
	case UploadSessionStatusActive, UploadSessionStatusAssembling, UploadSessionStatusCompleted,
		UploadSessionStatusFailed, UploadSessionStatusCancelled, UploadSessionStatusExpired:
		return status, nil
	}
	return "", fmt.Errorf("unknown upload session status %q", s)
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s UploadSessionStatus) CanTransitionTo(next UploadSessionStatus) bool {
	return slices.Contains(transitions[s], next)
}

// IsTerminal reports whether no further transition leaves s
func (s UploadSessionStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// ValidateTransition returns ErrInvalidTransition when from -> to is not an edge
func ValidateTransition(from, to UploadSessionStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// UploadSession represents an upload session
type UploadSession struct {
	ID               uuid.UUID           `json:"session_id"`
	OwnerID          string              `json:"owner_id"`
	OriginalFilename string              `json:"original_filename"`
	TotalSize        int64               `json:"total_size"`
	ChunkSize        int64               `json:"chunk_size"`
	TotalChunks      int                 `json:"total_chunks"`
	ReceivedChunks   []int               `json:"received_chunks"`
	Status           UploadSessionStatus `json:"status"`
	JobHint          string              `json:"job_hint,omitempty"`
	FileDigest       string              `json:"file_digest,omitempty"`
	ArtifactPath     string              `json:"artifact_path,omitempty"`
	JobHandle        string              `json:"job_handle,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	ExpiresAt        time.Time           `json:"expires_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// TotalChunksFor returns ceil(totalSize / chunkSize)
func TotalChunksFor(totalSize, chunkSize int64) int {
	if totalSize <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((totalSize + chunkSize - 1) / chunkSize)
}

// ExpectedChunkSize returns the exact byte length required for index
func (s *UploadSession) ExpectedChunkSize(index int) int64 {
	if index == s.TotalChunks-1 {
		return s.TotalSize - int64(s.TotalChunks-1)*s.ChunkSize
	}
	return s.ChunkSize
}

// ValidIndex reports whether index is inside [0, total_chunks)
func (s *UploadSession) ValidIndex(index int) bool {
	return index >= 0 && index < s.TotalChunks
}

// HasChunk reports whether index was already registered
func (s *UploadSession) HasChunk(index int) bool {
	_, found := slices.BinarySearch(s.ReceivedChunks, index)
	return found
}

// AddChunk inserts index keeping ReceivedChunks sorted, returns false if present
func (s *UploadSession) AddChunk(index int) bool {
	pos, found := slices.BinarySearch(s.ReceivedChunks, index)
	if found {
		return false
	}
	s.ReceivedChunks = slices.Insert(s.ReceivedChunks, pos, index)
	return true
}

// ReceivedCount is the cardinality of received_chunks
func (s *UploadSession) ReceivedCount() int {
	return len(s.ReceivedChunks)
}

// IsComplete reports whether every index has been received
func (s *UploadSession) IsComplete() bool {
	return len(s.ReceivedChunks) == s.TotalChunks
}

// MissingChunks returns the ascending indices not yet received, at most limit
// entries when limit > 0
func (s *UploadSession) MissingChunks(limit int) []int {
	missing := make([]int, 0)
	next := 0
	for i := 0; i < s.TotalChunks; i++ {
		if next < len(s.ReceivedChunks) && s.ReceivedChunks[next] == i {
			next++
			continue
		}
		missing = append(missing, i)
		if limit > 0 && len(missing) == limit {
			break
		}
	}
	return missing
}

// IsExpired reports whether the TTL elapsed at now
func (s *UploadSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsOwnedBy reports whether ownerID may operate on the session
func (s *UploadSession) IsOwnedBy(ownerID string) bool {
	return s.OwnerID == ownerID
}

// Chunk is the integrity record stored next to every chunk blob
type Chunk struct {
	SessionID  uuid.UUID `json:"session_id"`
	Index      int       `json:"index"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	ReceivedAt time.Time `json:"received_at"`
}
