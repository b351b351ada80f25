package service

import (
	"testing"
	"time"

	"github.com/stemsi/tolcsim-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedSection(ids ...string) model.SectionQuestions {
	items := make([]model.Question, len(ids))
	for i, id := range ids {
		items[i] = model.Question{ID: id, Options: map[string]string{"A": "a", "B": "b"}, CorrectAnswer: "B"}
	}
	return model.LoadedQuestions(items)
}

func TestValidateSubmission(t *testing.T) {
	assert.NoError(t, ValidateSubmission([]model.SubmittedAnswer{}))
	assert.NoError(t, ValidateSubmission([]model.SubmittedAnswer{{QuestionID: "q1", Answer: "A"}, {QuestionID: "q2"}}))

	assert.ErrorIs(t, ValidateSubmission(nil), ErrValidation)
	assert.ErrorIs(t, ValidateSubmission([]model.SubmittedAnswer{{QuestionID: "  "}}), ErrValidation)
	assert.ErrorIs(t, ValidateSubmission([]model.SubmittedAnswer{
		{QuestionID: "q1", Answer: "A"},
		{QuestionID: " q1", Answer: "B"},
	}), ErrValidation)
}

func TestScoreAnswers(t *testing.T) {
	questions := loadedSection("q1", "q2", "q3", "q4")

	records, score := ScoreAnswers(questions, []model.SubmittedAnswer{
		{QuestionID: "q1", Answer: "B"},
		{QuestionID: "q2", Answer: " b "},
		{QuestionID: "q3", Answer: "A"},
		{QuestionID: "ghost", Answer: "B"},
	})

	assert.Equal(t, model.Score{Correct: 2, Total: 4, Percentage: 50}, score)
	require.Len(t, records, 4)
	assert.True(t, records[0].Correct)
	assert.True(t, records[1].Correct)
	assert.Equal(t, "b", records[1].Answer)
	assert.False(t, records[2].Correct)
	// Unknown ids are kept and scored incorrect.
	assert.Equal(t, "ghost", records[3].QuestionID)
	assert.False(t, records[3].Correct)
}

func TestScoreAnswersEmptyAnswerNeverCorrect(t *testing.T) {
	questions := model.LoadedQuestions([]model.Question{{ID: "q1", CorrectAnswer: ""}})

	records, score := ScoreAnswers(questions, []model.SubmittedAnswer{{QuestionID: "q1", Answer: ""}})
	assert.False(t, records[0].Correct)
	assert.Equal(t, 0, score.Correct)
	assert.Equal(t, 1, score.Total)
}

func TestScoreAnswersEmptySection(t *testing.T) {
	records, score := ScoreAnswers(model.LoadedQuestions(nil), []model.SubmittedAnswer{})
	assert.Empty(t, records)
	assert.Equal(t, model.Score{}, score)
}

func TestTryFinalizeTracksProgress(t *testing.T) {
	now := time.Now()
	s := model.NewExamSession("u1", twoSectionExam, now)

	TryFinalize(s, now)
	assert.Equal(t, model.SessionStatusCreated, s.Status)
	assert.Nil(t, s.Metadata.CurrentSection)
	assert.Equal(t, 25, s.Metadata.RemainingTime)

	alpha, _ := s.Metadata.Section("alpha")
	require.NoError(t, alpha.Start(nil, now))
	TryFinalize(s, now)
	assert.Equal(t, model.SessionStatusInProgress, s.Status)
	require.NotNil(t, s.Metadata.CurrentSection)
	assert.Equal(t, "alpha", *s.Metadata.CurrentSection)

	require.NoError(t, alpha.Complete(nil, model.NewScore(0, 0), now))
	TryFinalize(s, now)
	assert.Equal(t, model.SessionStatusInProgress, s.Status)
	assert.Nil(t, s.Metadata.CurrentSection)
	assert.Equal(t, 15, s.Metadata.RemainingTime)
	assert.Nil(t, s.Metadata.OverallScore)
}

func TestTryFinalizeAggregates(t *testing.T) {
	start := time.Now()
	s := model.NewExamSession("u1", twoSectionExam, start)

	alpha, _ := s.Metadata.Section("alpha")
	require.NoError(t, alpha.Start(loadedSection("a1", "a2").Items, start))
	require.NoError(t, alpha.Complete(nil, model.NewScore(2, 2), start))
	beta, _ := s.Metadata.Section("beta")
	require.NoError(t, beta.Start(loadedSection("b1", "b2").Items, start))
	require.NoError(t, beta.Complete(nil, model.NewScore(0, 2), start))

	end := start.Add(30 * time.Minute)
	TryFinalize(s, end)

	assert.Equal(t, model.SessionStatusCompleted, s.Status)
	require.NotNil(t, s.Metadata.OverallScore)
	assert.Equal(t, model.Score{Correct: 2, Total: 4, Percentage: 50}, *s.Metadata.OverallScore)
	require.NotNil(t, s.CompletedAt)
	assert.True(t, s.CompletedAt.Equal(end))
	assert.Zero(t, s.Metadata.RemainingTime)

	// A second call leaves everything as it was.
	TryFinalize(s, end.Add(time.Hour))
	assert.True(t, s.CompletedAt.Equal(end))
	assert.Equal(t, 50, s.Metadata.OverallScore.Percentage)
}
