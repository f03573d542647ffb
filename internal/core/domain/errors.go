package domain

import "errors"

// ErrSessionNotFound is an error thrown when session is not found
var ErrSessionNotFound = errors.New("session not found")

// ErrAccessDenied is an error thrown when the caller does not own the session
var ErrAccessDenied = errors.New("access denied")

// ErrInvalidArgument is an error thrown when init parameters are invalid
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInvalidChunkIndex is an error thrown when a chunk index is out of range
var ErrInvalidChunkIndex = errors.New("invalid chunk index")

// ErrInvalidState is an error thrown when the operation is not valid for the current status
var ErrInvalidState = errors.New("invalid session state")

// ErrSessionExpired is an error thrown when the session TTL elapsed
var ErrSessionExpired = errors.New("session expired")

// ErrAssemblyFailure is an error thrown when concatenating chunks fails
var ErrAssemblyFailure = errors.New("assembly failure")

// ErrStorageIO is an error thrown when a chunk cannot be persisted
var ErrStorageIO = errors.New("storage io error")

// ErrChunkSizeMismatch is an error thrown when a chunk has the wrong length
var ErrChunkSizeMismatch = errors.New("chunk size mismatch")

// ErrChecksumMismatch is an error thrown when a chunk digest differs from the client one
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ErrChunkNotFound is an error thrown when a chunk blob is absent from storage
var ErrChunkNotFound = errors.New("chunk not found")

// ErrInvalidTransition is an error thrown when a status change is not an edge of the state machine
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrAlreadyExists is an error thrown when entity already exists
var ErrAlreadyExists = errors.New("already exists")

// ErrJobSubmission is an error thrown when the job pipeline refuses the artifact
var ErrJobSubmission = errors.New("job submission failed")
