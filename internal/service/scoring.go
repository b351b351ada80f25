package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/tolcsim-backend/internal/model"
)

// ValidateSubmission rejects answers without a question id and repeated ids.
func ValidateSubmission(answers []model.SubmittedAnswer) error {
	if answers == nil {
		return fmt.Errorf("%w: answers must be a list", ErrValidation)
	}
	seen := make(map[string]struct{}, len(answers))
	for i, a := range answers {
		id := strings.TrimSpace(a.QuestionID)
		if id == "" {
			return fmt.Errorf("%w: answers[%d] has no questionId", ErrValidation, i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: question %q answered twice", ErrValidation, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ScoreAnswers marks each submitted answer against the section's stored key.
// Answers to questions outside the section are kept and scored incorrect.
// The total is the size of the section, not the number of answers.
func ScoreAnswers(questions model.SectionQuestions, answers []model.SubmittedAnswer) ([]model.AnswerRecord, model.Score) {
	records := make([]model.AnswerRecord, 0, len(answers))
	correct := 0
	for _, a := range answers {
		id := strings.TrimSpace(a.QuestionID)
		given := strings.TrimSpace(a.Answer)

		ok := false
		if q, found := questions.Find(id); found && given != "" {
			ok = strings.EqualFold(q.CorrectAnswer, given)
		}
		if ok {
			correct++
		}
		records = append(records, model.AnswerRecord{QuestionID: id, Answer: given, Correct: ok})
	}
	return records, model.NewScore(correct, len(questions.Items))
}

// TryFinalize folds section scores into the session once every section is
// completed. It mutates s in place and returns it; calling it again on a
// completed session changes nothing.
func TryFinalize(s *model.ExamSession, now time.Time) *model.ExamSession {
	if s.Status == model.SessionStatusCompleted {
		return s
	}

	meta := &s.Metadata
	meta.RecomputeRemainingTime()

	if !meta.AllCompleted() {
		meta.CurrentSection = nil
		if open, ok := meta.OpenSection(); ok {
			id := open.ID
			meta.CurrentSection = &id
		}
		for i := range meta.Sections {
			if meta.Sections[i].Status != model.SectionStatusPending {
				s.Status = model.SessionStatusInProgress
				break
			}
		}
		return s
	}

	correct, total := 0, 0
	for _, sec := range meta.Sections {
		if sec.Score != nil {
			correct += sec.Score.Correct
			total += sec.Score.Total
		}
	}
	overall := model.NewScore(correct, total)
	meta.OverallScore = &overall
	meta.CurrentSection = nil
	meta.RemainingTime = 0

	completed := now
	s.CompletedAt = &completed
	s.Status = model.SessionStatusCompleted
	return s
}
