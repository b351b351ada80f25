package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/tolcsim-backend/internal/model"
)

// QuestionStore is the read-only view of the question bank.
type QuestionStore interface {
	FindByTopics(ctx context.Context, topicIDs []string, limit int) ([]model.StoredQuestion, error)
	FindAny(ctx context.Context, limit int) ([]model.StoredQuestion, error)
}

// SessionStore persists whole session documents. Update is a compare-and-swap
// on ExamSession.Version and returns repository.ErrVersionConflict on a lost race.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	Update(ctx context.Context, s *model.ExamSession) error
	ListCompletedByUser(ctx context.Context, userID string, limit, offset int) ([]model.ExamSession, int, error)
}

// StatsStore reads per-user analytics rows.
type StatsStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.UserExamStats, error)
}
