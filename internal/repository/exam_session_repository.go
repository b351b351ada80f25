package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tolcsim-backend/internal/model"
)

// ExamSessionRepository persists one JSON document per session.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

const sessionColumns = `id, user_id, exam_type, status, started_at, completed_at, metadata, version, updated_at`

// listCompletedByUserSQL pages a user's finished sessions. id breaks ties on
// completed_at so OFFSET paging never repeats or skips a session.
const listCompletedByUserSQL = `SELECT ` + sessionColumns + `
	FROM exam_sessions
	WHERE user_id = $1 AND status = $2
	ORDER BY completed_at DESC, id DESC
	LIMIT $3 OFFSET $4`

// Create inserts a new session document at version 1.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (id, user_id, exam_type, status, started_at, completed_at, metadata, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		 RETURNING version, updated_at`,
		s.ID, s.UserID, s.ExamType, s.Status, s.StartedAt, s.CompletedAt, metadata,
	).Scan(&s.Version, &s.UpdatedAt)
}

// GetByID retrieves a session document. Returns ErrNotFound if absent.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// Update overwrites the whole document if its version is still s.Version.
// On success s.Version is advanced; a lost race returns ErrVersionConflict.
func (r *ExamSessionRepository) Update(ctx context.Context, s *model.ExamSession) error {
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET status = $1, completed_at = $2, metadata = $3,
		     version = version + 1, updated_at = NOW()
		 WHERE id = $4 AND version = $5
		 RETURNING version, updated_at`,
		s.Status, s.CompletedAt, metadata, s.ID, s.Version,
	).Scan(&s.Version, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

// ListCompletedByUser returns a user's completed sessions, newest first.
func (r *ExamSessionRepository) ListCompletedByUser(ctx context.Context, userID string, limit, offset int) ([]model.ExamSession, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE user_id = $1 AND status = $2`,
		userID, model.SessionStatusCompleted,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		listCompletedByUserSQL,
		userID, model.SessionStatusCompleted, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, total, rows.Err()
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	var (
		s        model.ExamSession
		metadata []byte
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.ExamType, &s.Status, &s.StartedAt,
		&s.CompletedAt, &metadata, &s.Version, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for session %s: %w", s.ID, err)
	}
	return &s, nil
}
