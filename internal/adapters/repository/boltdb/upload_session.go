package boltdb

import (
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var bucketSessions = []byte("upload_sessions")

// SessionStore keeps upload sessions in a single bbolt file.
// Every mutation runs inside one read-write transaction, which bbolt serializes.
type SessionStore struct {
	db  *bolt.DB
	now func() time.Time
}

var _ port.SessionStore = (*SessionStore)(nil)

// NewSessionStore opens (or creates) the database at path
func NewSessionStore(path string) (*SessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session store dir: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create session bucket: %w", err)
	}

	return &SessionStore{db: db, now: time.Now}, nil
}

func (s *SessionStore) Create(_ context.Context, session domain.UploadSession) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		key := session.ID[:]
		if b.Get(key) != nil {
			return domain.ErrAlreadyExists
		}
		if session.ReceivedChunks == nil {
			session.ReceivedChunks = []int{}
		}
		return put(b, &session)
	})
}

func (s *SessionStore) Get(_ context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	var session *domain.UploadSession
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		session, err = get(tx.Bucket(bucketSessions), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionStore) CompareAndSwapStatus(_ context.Context, id uuid.UUID, expected, next domain.UploadSessionStatus) (bool, error) {
	if err := domain.ValidateTransition(expected, next); err != nil {
		return false, err
	}

	swapped := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		session, err := get(b, id)
		if err != nil {
			return err
		}
		if session.Status != expected {
			return nil
		}
		session.Status = next
		session.UpdatedAt = s.now().UTC()
		swapped = true
		return put(b, session)
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (s *SessionStore) AddReceivedChunk(_ context.Context, id uuid.UUID, index int) (bool, int, error) {
	alreadyPresent := false
	count := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		session, err := get(b, id)
		if err != nil {
			return err
		}
		if session.Status != domain.UploadSessionStatusActive {
			return fmt.Errorf("%w: session is %s", domain.ErrInvalidState, session.Status)
		}
		if !session.ValidIndex(index) {
			return domain.ErrInvalidChunkIndex
		}
		if !session.AddChunk(index) {
			alreadyPresent = true
			count = session.ReceivedCount()
			return nil
		}
		count = session.ReceivedCount()
		session.UpdatedAt = s.now().UTC()
		return put(b, session)
	})
	if err != nil {
		return false, 0, err
	}
	return alreadyPresent, count, nil
}

func (s *SessionStore) RecordAssembly(_ context.Context, id uuid.UUID, fileDigest, artifactPath string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		session, err := get(b, id)
		if err != nil {
			return err
		}
		if session.Status != domain.UploadSessionStatusAssembling {
			return fmt.Errorf("%w: session is %s", domain.ErrInvalidState, session.Status)
		}
		session.FileDigest = fileDigest
		session.ArtifactPath = artifactPath
		session.UpdatedAt = s.now().UTC()
		return put(b, session)
	})
}

func (s *SessionStore) RecordJobHandle(_ context.Context, id uuid.UUID, jobHandle string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		session, err := get(b, id)
		if err != nil {
			return err
		}
		session.JobHandle = jobHandle
		session.UpdatedAt = s.now().UTC()
		return put(b, session)
	})
}

func (s *SessionStore) FindExpired(_ context.Context, now time.Time) ([]domain.UploadSession, error) {
	sessions := make([]domain.UploadSession, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(_, v []byte) error {
			var session domain.UploadSession
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("decode session: %w", err)
			}
			if session.Status == domain.UploadSessionStatusCompleted || !session.ExpiresAt.Before(now) {
				return nil
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionStore) Delete(_ context.Context, id uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete(id[:])
	})
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

func get(b *bolt.Bucket, id uuid.UUID) (*domain.UploadSession, error) {
	v := b.Get(id[:])
	if v == nil {
		return nil, domain.ErrSessionNotFound
	}
	var session domain.UploadSession
	if err := json.Unmarshal(v, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

func put(b *bolt.Bucket, session *domain.UploadSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	return b.Put(session.ID[:], data)
}
