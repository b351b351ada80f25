package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tolcsim-backend/internal/model"
)

// QuestionRepository reads the question bank. Reads are safe to run concurrently.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, topic_id, question_text, options, correct_answer, difficulty`

// FindByTopics returns up to limit random questions whose topic is in topicIDs.
func (r *QuestionRepository) FindByTopics(ctx context.Context, topicIDs []string, limit int) ([]model.StoredQuestion, error) {
	if len(topicIDs) == 0 || limit <= 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions
		 WHERE topic_id = ANY($1)
		 ORDER BY random()
		 LIMIT $2`, topicIDs, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// FindAny returns up to limit random questions from the whole bank.
func (r *QuestionRepository) FindAny(ctx context.Context, limit int) ([]model.StoredQuestion, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions
		 ORDER BY random()
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// BulkInsert loads questions with COPY. Returns the number of rows copied.
func (r *QuestionRepository) BulkInsert(ctx context.Context, questions []model.StoredQuestion) (int64, error) {
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"id", "topic_id", "question_text", "options", "correct_answer", "difficulty"},
		pgx.CopyFromSlice(len(questions), func(i int) ([]any, error) {
			q := questions[i]
			return []any{q.ID, q.TopicID, q.QuestionText, q.Options, q.CorrectAnswer, q.Difficulty}, nil
		}),
	)
}

func collectQuestions(rows pgx.Rows) ([]model.StoredQuestion, error) {
	defer rows.Close()

	var questions []model.StoredQuestion
	for rows.Next() {
		var q model.StoredQuestion
		if err := rows.Scan(&q.ID, &q.TopicID, &q.QuestionText, &q.Options, &q.CorrectAnswer, &q.Difficulty); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
