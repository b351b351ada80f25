package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tolcsim-backend/internal/model"
)

// StatsRepository handles per-user analytics rows.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// ListByUser returns every exam type the user has completed at least once.
func (r *StatsRepository) ListByUser(ctx context.Context, userID string) ([]model.UserExamStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, exam_type, attempts, total_correct, total_questions, best_percentage, last_completed_at
		 FROM user_exam_stats
		 WHERE user_id = $1
		 ORDER BY exam_type`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []model.UserExamStats
	for rows.Next() {
		var s model.UserExamStats
		if err := rows.Scan(&s.UserID, &s.ExamType, &s.Attempts, &s.TotalCorrect,
			&s.TotalQuestions, &s.BestPercentage, &s.LastCompletedAt); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// BulkUpsert folds pre-aggregated deltas into user_exam_stats in one statement.
// Each (user_id, exam_type) pair must appear at most once in deltas.
func (r *StatsRepository) BulkUpsert(ctx context.Context, deltas []model.UserExamStats) error {
	n := len(deltas)
	users := make([]string, n)
	examTypes := make([]string, n)
	attempts := make([]int, n)
	correct := make([]int, n)
	totals := make([]int, n)
	best := make([]int, n)
	last := make([]time.Time, n)

	for i, d := range deltas {
		users[i] = d.UserID
		examTypes[i] = d.ExamType
		attempts[i] = d.Attempts
		correct[i] = d.TotalCorrect
		totals[i] = d.TotalQuestions
		best[i] = d.BestPercentage
		last[i] = d.LastCompletedAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_exam_stats AS s
			(user_id, exam_type, attempts, total_correct, total_questions, best_percentage, last_completed_at)
		SELECT u.user_id, u.exam_type, u.attempts, u.total_correct, u.total_questions, u.best_percentage, u.last_completed_at
		FROM UNNEST(
			$1::text[],
			$2::text[],
			$3::int[],
			$4::int[],
			$5::int[],
			$6::int[],
			$7::timestamptz[]
		) AS u (user_id, exam_type, attempts, total_correct, total_questions, best_percentage, last_completed_at)
		ON CONFLICT (user_id, exam_type) DO UPDATE
		SET attempts          = s.attempts + EXCLUDED.attempts,
		    total_correct     = s.total_correct + EXCLUDED.total_correct,
		    total_questions   = s.total_questions + EXCLUDED.total_questions,
		    best_percentage   = GREATEST(s.best_percentage, EXCLUDED.best_percentage),
		    last_completed_at = GREATEST(s.last_completed_at, EXCLUDED.last_completed_at)
	`, users, examTypes, attempts, correct, totals, best, last)
	return err
}

// Upsert folds a single delta. Used as the per-row fallback when a bulk write fails.
func (r *StatsRepository) Upsert(ctx context.Context, d model.UserExamStats) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_exam_stats AS s
			(user_id, exam_type, attempts, total_correct, total_questions, best_percentage, last_completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, exam_type) DO UPDATE
		SET attempts          = s.attempts + EXCLUDED.attempts,
		    total_correct     = s.total_correct + EXCLUDED.total_correct,
		    total_questions   = s.total_questions + EXCLUDED.total_questions,
		    best_percentage   = GREATEST(s.best_percentage, EXCLUDED.best_percentage),
		    last_completed_at = GREATEST(s.last_completed_at, EXCLUDED.last_completed_at)
	`, d.UserID, d.ExamType, d.Attempts, d.TotalCorrect, d.TotalQuestions, d.BestPercentage, d.LastCompletedAt)
	return err
}
