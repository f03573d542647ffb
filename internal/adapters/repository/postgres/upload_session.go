package postgres

import (
	"audio-upload/internal/core/domain"
	"audio-upload/internal/core/port"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const sessionColumns = `id, owner_id, original_filename, total_size, chunk_size, total_chunks, status,
	job_hint, file_digest, artifact_path, job_handle, created_at, expires_at, updated_at`

type sqlSessionStore struct {
	db *sql.DB
}

// NewSQLSessionStore creates a postgres backed session store
func NewSQLSessionStore(db *sql.DB) port.SessionStore {
	return &sqlSessionStore{db: db}
}

// Create creates an upload session
func (s *sqlSessionStore) Create(ctx context.Context, session domain.UploadSession) error {
	query := `
		INSERT INTO upload_session (
			id, owner_id, original_filename, total_size, chunk_size, total_chunks, status,
			job_hint, created_at, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $9)`

	_, err := s.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.OwnerID,
		session.OriginalFilename,
		session.TotalSize,
		session.ChunkSize,
		session.TotalChunks,
		session.Status,
		session.JobHint,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Get loads the session and its received chunk indices
func (s *sqlSessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM upload_session WHERE id = $1`

	var row dbUploadSession
	if err := row.scan(s.db.QueryRowContext(ctx, query, id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	session, err := row.ToDomain()
	if err != nil {
		return nil, err
	}
	session.ReceivedChunks, err = s.receivedChunks(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// CompareAndSwapStatus moves the session to next only while it is still expected
func (s *sqlSessionStore) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next domain.UploadSessionStatus) (bool, error) {
	if err := domain.ValidateTransition(expected, next); err != nil {
		return false, err
	}

	query := `UPDATE upload_session SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`
	result, err := s.db.ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 1 {
		return true, nil
	}

	if err := s.exists(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// AddReceivedChunk registers index while holding the session row lock
func (s *sqlSessionStore) AddReceivedChunk(ctx context.Context, id uuid.UUID, index int) (bool, int, error) {
	alreadyPresent := false
	count := 0

	err := execute(ctx, s.db, func(q SQLQuerier) error {
		var status string
		var totalChunks int
		err := q.QueryRowContext(ctx, `SELECT status, total_chunks FROM upload_session WHERE id = $1 FOR UPDATE`, id).
			Scan(&status, &totalChunks)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrSessionNotFound
			}
			return err
		}
		if domain.UploadSessionStatus(status) != domain.UploadSessionStatusActive {
			return fmt.Errorf("%w: session is %s", domain.ErrInvalidState, status)
		}
		if index < 0 || index >= totalChunks {
			return domain.ErrInvalidChunkIndex
		}

		result, err := q.ExecContext(ctx,
			`INSERT INTO upload_session_chunk (session_id, chunk_index) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			id, index)
		if err != nil {
			return err
		}
		inserted, err := result.RowsAffected()
		if err != nil {
			return err
		}
		alreadyPresent = inserted == 0

		if !alreadyPresent {
			if _, err := q.ExecContext(ctx, `UPDATE upload_session SET updated_at = now() WHERE id = $1`, id); err != nil {
				return err
			}
		}

		return q.QueryRowContext(ctx, `SELECT count(*) FROM upload_session_chunk WHERE session_id = $1`, id).Scan(&count)
	})
	if err != nil {
		return false, 0, err
	}
	return alreadyPresent, count, nil
}

// RecordAssembly stores the whole-file digest, only while the session is assembling
func (s *sqlSessionStore) RecordAssembly(ctx context.Context, id uuid.UUID, fileDigest, artifactPath string) error {
	query := `
		UPDATE upload_session SET file_digest = $1, artifact_path = $2, updated_at = now()
		WHERE id = $3 AND status = $4`

	result, err := s.db.ExecContext(ctx, query, fileDigest, artifactPath, id, domain.UploadSessionStatusAssembling)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if err := s.exists(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: session is no longer assembling", domain.ErrInvalidState)
	}
	return nil
}

// RecordJobHandle stores the pipeline handle
func (s *sqlSessionStore) RecordJobHandle(ctx context.Context, id uuid.UUID, jobHandle string) error {
	query := `UPDATE upload_session SET job_handle = $1, updated_at = now() WHERE id = $2`

	result, err := s.db.ExecContext(ctx, query, jobHandle, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// FindExpired returns the sessions past their TTL that did not complete
func (s *sqlSessionStore) FindExpired(ctx context.Context, now time.Time) ([]domain.UploadSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM upload_session
		WHERE status <> 'completed' AND expires_at < $1`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]domain.UploadSession, 0)
	for rows.Next() {
		var row dbUploadSession
		if err := row.scan(rows); err != nil {
			return nil, err
		}
		session, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// received chunks are only needed by the sweeper for progress events
	for i := range sessions {
		sessions[i].ReceivedChunks, err = s.receivedChunks(ctx, s.db, sessions[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// Delete removes the session, chunk rows cascade
func (s *sqlSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM upload_session WHERE id = $1`, id)
	return err
}

// Close is a no-op, the *sql.DB is owned by the caller
func (s *sqlSessionStore) Close() error {
	return nil
}

func (s *sqlSessionStore) exists(ctx context.Context, id uuid.UUID) error {
	var found bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM upload_session WHERE id = $1)`, id).Scan(&found)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *sqlSessionStore) receivedChunks(ctx context.Context, q SQLQuerier, id uuid.UUID) ([]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT chunk_index FROM upload_session_chunk WHERE session_id = $1 ORDER BY chunk_index`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indices := make([]int, 0)
	for rows.Next() {
		var index int
		if err := rows.Scan(&index); err != nil {
			return nil, err
		}
		indices = append(indices, index)
	}
	return indices, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

type dbUploadSession struct {
	ID               uuid.UUID `db:"id"`
	OwnerID          string    `db:"owner_id"`
	OriginalFilename string    `db:"original_filename"`
	TotalSize        int64     `db:"total_size"`
	ChunkSize        int64     `db:"chunk_size"`
	TotalChunks      int       `db:"total_chunks"`
	Status           string    `db:"status"`
	JobHint          string    `db:"job_hint"`
	FileDigest       string    `db:"file_digest"`
	ArtifactPath     string    `db:"artifact_path"`
	JobHandle        string    `db:"job_handle"`
	CreatedAt        time.Time `db:"created_at"`
	ExpiresAt        time.Time `db:"expires_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (s *dbUploadSession) scan(r rowScanner) error {
	return r.Scan(
		&s.ID,
		&s.OwnerID,
		&s.OriginalFilename,
		&s.TotalSize,
		&s.ChunkSize,
		&s.TotalChunks,
		&s.Status,
		&s.JobHint,
		&s.FileDigest,
		&s.ArtifactPath,
		&s.JobHandle,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.UpdatedAt,
	)
}

// ToDomain converts db obj to domain
func (s *dbUploadSession) ToDomain() (*domain.UploadSession, error) {
	status, err := domain.ParseUploadSessionStatus(s.Status)
	if err != nil {
		return nil, err
	}
	return &domain.UploadSession{
		ID:               s.ID,
		OwnerID:          s.OwnerID,
		OriginalFilename: s.OriginalFilename,
		TotalSize:        s.TotalSize,
		ChunkSize:        s.ChunkSize,
		TotalChunks:      s.TotalChunks,
		ReceivedChunks:   []int{},
		Status:           status,
		JobHint:          s.JobHint,
		FileDigest:       s.FileDigest,
		ArtifactPath:     s.ArtifactPath,
		JobHandle:        s.JobHandle,
		CreatedAt:        s.CreatedAt,
		ExpiresAt:        s.ExpiresAt,
		UpdatedAt:        s.UpdatedAt,
	}, nil
}
