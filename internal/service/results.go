package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tolcsim-backend/internal/model"
)

// SectionResult is one section in the results page.
type SectionResult struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Score            model.Score          `json:"score"`
	QuestionCount    int                  `json:"questionCount"`
	Answers          []model.AnswerRecord `json:"answers"`
	TimeSpentSeconds int64                `json:"timeSpentSeconds"`
}

// ResultsView is the client-facing payload for a completed session.
type ResultsView struct {
	SessionID        uuid.UUID       `json:"sessionId"`
	UserID           string          `json:"userId"`
	ExamType         string          `json:"examType"`
	StartedAt        time.Time       `json:"startedAt"`
	CompletedAt      time.Time       `json:"completedAt"`
	TimeSpentSeconds int64           `json:"timeSpentSeconds"`
	Sections         []SectionResult `json:"sections"`
	OverallScore     model.Score     `json:"overallScore"`
}

// FormatResults projects a completed session. Scores are passed through as
// stored; nothing is recomputed here.
func FormatResults(s *model.ExamSession) (*ResultsView, error) {
	if s.Status != model.SessionStatusCompleted || s.CompletedAt == nil {
		return nil, ErrNotCompleted
	}

	sections := make([]SectionResult, len(s.Metadata.Sections))
	for i, sec := range s.Metadata.Sections {
		r := SectionResult{
			ID:            sec.ID,
			Name:          sec.Name,
			QuestionCount: len(sec.Questions.Items),
			Answers:       sec.Answers,
		}
		if r.Answers == nil {
			r.Answers = []model.AnswerRecord{}
		}
		if sec.Score != nil {
			r.Score = *sec.Score
		}
		if sec.StartedAt != nil && sec.CompletedAt != nil {
			r.TimeSpentSeconds = int64(sec.CompletedAt.Sub(*sec.StartedAt).Seconds())
		}
		sections[i] = r
	}

	view := &ResultsView{
		SessionID:        s.ID,
		UserID:           s.UserID,
		ExamType:         s.ExamType,
		StartedAt:        s.StartedAt,
		CompletedAt:      *s.CompletedAt,
		TimeSpentSeconds: int64(s.CompletedAt.Sub(s.StartedAt).Seconds()),
		Sections:         sections,
	}
	if s.Metadata.OverallScore != nil {
		view.OverallScore = *s.Metadata.OverallScore
	}
	return view, nil
}
