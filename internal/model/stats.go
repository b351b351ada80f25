package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionCompletedEvent is queued when a session's aggregate is finalized.
type SessionCompletedEvent struct {
	SessionID   uuid.UUID `json:"session_id"`
	UserID      string    `json:"user_id"`
	ExamType    string    `json:"exam_type"`
	Correct     int       `json:"correct"`
	Total       int       `json:"total"`
	Percentage  int       `json:"percentage"`
	CompletedAt time.Time `json:"completed_at"`
}

// UserExamStats aggregates a user's completed simulations per exam type.
type UserExamStats struct {
	UserID          string    `json:"user_id"`
	ExamType        string    `json:"exam_type"`
	Attempts        int       `json:"attempts"`
	TotalCorrect    int       `json:"total_correct"`
	TotalQuestions  int       `json:"total_questions"`
	BestPercentage  int       `json:"best_percentage"`
	LastCompletedAt time.Time `json:"last_completed_at"`
}

// AveragePercentage is the rounded hit rate over every attempt.
func (s UserExamStats) AveragePercentage() int {
	return NewScore(s.TotalCorrect, s.TotalQuestions).Percentage
}

// SectionSummary is the compact per-section line in the history list.
type SectionSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
}

// SessionSummary is one completed session in a user's history.
type SessionSummary struct {
	ID           uuid.UUID        `json:"id"`
	ExamType     string           `json:"exam_type"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at"`
	OverallScore *Score           `json:"overall_score"`
	Sections     []SectionSummary `json:"sections"`
}

// Summarize projects a session into its history line.
func (s *ExamSession) Summarize() SessionSummary {
	sections := make([]SectionSummary, len(s.Metadata.Sections))
	for i, sec := range s.Metadata.Sections {
		pct := 0
		if sec.Score != nil {
			pct = sec.Score.Percentage
		}
		sections[i] = SectionSummary{ID: sec.ID, Name: sec.Name, Percentage: pct}
	}
	return SessionSummary{
		ID:           s.ID,
		ExamType:     s.ExamType,
		StartedAt:    s.StartedAt,
		CompletedAt:  s.CompletedAt,
		OverallScore: s.Metadata.OverallScore,
		Sections:     sections,
	}
}

// HistoryQuery is the pagination of the history list.
type HistoryQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=50"`
}

// Normalize fills defaults for omitted parameters.
func (q *HistoryQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 10
	}
}
