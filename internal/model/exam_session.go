package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusCreated    SessionStatus = "created"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

// SectionStatus enumerates section states. Transitions only move forward:
// pending → in_progress → completed.
type SectionStatus string

const (
	SectionStatusPending    SectionStatus = "pending"
	SectionStatusInProgress SectionStatus = "in_progress"
	SectionStatusCompleted  SectionStatus = "completed"
)

// ErrInvalidTransition is wrapped by every rejected section transition.
var ErrInvalidTransition = errors.New("invalid section transition")

// TransitionError describes a rejected section transition.
type TransitionError struct {
	SectionID string
	From      SectionStatus
	To        SectionStatus
	Reason    string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("section %q: cannot move from %s to %s", e.SectionID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// CanTransitionTo reports whether next is the single legal successor of s.
func (s SectionStatus) CanTransitionTo(next SectionStatus) bool {
	switch s {
	case SectionStatusPending:
		return next == SectionStatusInProgress
	case SectionStatusInProgress:
		return next == SectionStatusCompleted
	case SectionStatusCompleted:
		return false
	default:
		return false
	}
}

// Score is the outcome of a section or of the whole session.
type Score struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// NewScore computes the rounded percentage. An empty section scores 0%.
func NewScore(correct, total int) Score {
	pct := 0
	if total > 0 {
		pct = int(math.Round(100 * float64(correct) / float64(total)))
	}
	return Score{Correct: correct, Total: total, Percentage: pct}
}

// AnswerRecord is one scored answer.
type AnswerRecord struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	Correct    bool   `json:"correct"`
}

// SectionQuestions holds either the planned question count (before start) or
// the provisioned question list (after start). It serializes as a number or
// an array respectively, so the stored document keeps a single "questions" field.
type SectionQuestions struct {
	Planned int
	Items   []Question
	loaded  bool
}

// PlannedQuestions returns an unstarted question slot.
func PlannedQuestions(n int) SectionQuestions {
	return SectionQuestions{Planned: n}
}

// LoadedQuestions returns a slot holding the provisioned list.
func LoadedQuestions(items []Question) SectionQuestions {
	if items == nil {
		items = []Question{}
	}
	return SectionQuestions{Planned: len(items), Items: items, loaded: true}
}

// Loaded reports whether real content has replaced the planned count.
func (q SectionQuestions) Loaded() bool {
	return q.loaded
}

// Find returns the question with the given id.
func (q SectionQuestions) Find(id string) (Question, bool) {
	for _, item := range q.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Question{}, false
}

func (q SectionQuestions) MarshalJSON() ([]byte, error) {
	if q.loaded {
		items := q.Items
		if items == nil {
			items = []Question{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(q.Planned)
}

func (q *SectionQuestions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = SectionQuestions{}
		return nil
	}
	if data[0] == '[' {
		var items []Question
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("decode section questions: %w", err)
		}
		*q = LoadedQuestions(items)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode planned question count: %w", err)
	}
	*q = PlannedQuestions(n)
	return nil
}

// SectionState is one timed sub-test embedded in the session document.
type SectionState struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	TopicIDs     []string         `json:"topic_ids"`
	PlannedCount int              `json:"planned_count"`
	Questions    SectionQuestions `json:"questions"`
	Duration     int              `json:"duration"`
	Status       SectionStatus    `json:"status"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	Answers      []AnswerRecord   `json:"answers,omitempty"`
	Score        *Score           `json:"score,omitempty"`
}

// Start attaches the provisioned questions and opens the section.
func (s *SectionState) Start(questions []Question, now time.Time) error {
	if !s.Status.CanTransitionTo(SectionStatusInProgress) {
		return &TransitionError{SectionID: s.ID, From: s.Status, To: SectionStatusInProgress}
	}
	s.Questions = LoadedQuestions(questions)
	started := now
	s.StartedAt = &started
	s.Status = SectionStatusInProgress
	return nil
}

// Complete records the scored answers and closes the section.
func (s *SectionState) Complete(answers []AnswerRecord, score Score, now time.Time) error {
	if !s.Status.CanTransitionTo(SectionStatusCompleted) {
		return &TransitionError{SectionID: s.ID, From: s.Status, To: SectionStatusCompleted}
	}
	if !s.Questions.Loaded() {
		return &TransitionError{
			SectionID: s.ID,
			From:      s.Status,
			To:        SectionStatusCompleted,
			Reason:    "question set was never provisioned",
		}
	}
	if answers == nil {
		answers = []AnswerRecord{}
	}
	s.Answers = answers
	sc := score
	s.Score = &sc
	completed := now
	s.CompletedAt = &completed
	s.Status = SectionStatusCompleted
	return nil
}

// SessionMetadata is the single structured document persisted per session.
type SessionMetadata struct {
	Sections       []SectionState `json:"sections"`
	CurrentSection *string        `json:"currentSection"`
	TotalDuration  int            `json:"totalDuration"`
	RemainingTime  int            `json:"remainingTime"`
	OverallScore   *Score         `json:"overallScore"`
}

// Section returns a pointer into the section list so callers mutate in place.
func (m *SessionMetadata) Section(id string) (*SectionState, bool) {
	for i := range m.Sections {
		if m.Sections[i].ID == id {
			return &m.Sections[i], true
		}
	}
	return nil, false
}

// OpenSection returns the section currently in progress, if any.
func (m *SessionMetadata) OpenSection() (*SectionState, bool) {
	for i := range m.Sections {
		if m.Sections[i].Status == SectionStatusInProgress {
			return &m.Sections[i], true
		}
	}
	return nil, false
}

// AllCompleted reports whether every section is completed.
func (m *SessionMetadata) AllCompleted() bool {
	for i := range m.Sections {
		if m.Sections[i].Status != SectionStatusCompleted {
			return false
		}
	}
	return true
}

// RecomputeRemainingTime sets the advisory remaining time to the planned
// minutes of every section not yet completed.
func (m *SessionMetadata) RecomputeRemainingTime() {
	remaining := 0
	for i := range m.Sections {
		if m.Sections[i].Status != SectionStatusCompleted {
			remaining += m.Sections[i].Duration
		}
	}
	m.RemainingTime = remaining
}

// ExamSession represents one simulation attempt by a user.
type ExamSession struct {
	ID          uuid.UUID       `json:"id"`
	UserID      string          `json:"user_id"`
	ExamType    string          `json:"exam_type"`
	Status      SessionStatus   `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	Metadata    SessionMetadata `json:"metadata"`
	// Version is bumped on every write and guards compare-and-swap updates.
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewExamSession builds a fresh session from an exam type's section layout.
func NewExamSession(userID string, exam ExamType, now time.Time) *ExamSession {
	sections := make([]SectionState, len(exam.Sections))
	total := 0
	for i, cfg := range exam.Sections {
		sections[i] = SectionState{
			ID:           cfg.ID,
			Name:         cfg.Name,
			Description:  cfg.Description,
			TopicIDs:     append([]string(nil), cfg.TopicIDs...),
			PlannedCount: cfg.Questions,
			Questions:    PlannedQuestions(cfg.Questions),
			Duration:     cfg.Duration,
			Status:       SectionStatusPending,
		}
		total += cfg.Duration
	}

	return &ExamSession{
		ID:        uuid.New(),
		UserID:    userID,
		ExamType:  exam.Code,
		Status:    SessionStatusCreated,
		StartedAt: now,
		Metadata: SessionMetadata{
			Sections:      sections,
			TotalDuration: total,
			RemainingTime: total,
		},
		UpdatedAt: now,
	}
}

// Clone returns a deep copy by round-tripping the document.
func (s *ExamSession) Clone() *ExamSession {
	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("clone exam session: %v", err))
	}
	var out ExamSession
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("clone exam session: %v", err))
	}
	return &out
}

// CreateSessionRequest is the payload for starting a new simulation.
type CreateSessionRequest struct {
	ExamType string `json:"exam_type" binding:"required,min=2,max=20"`
}

// SubmittedAnswer is one answer posted by the client.
type SubmittedAnswer struct {
	QuestionID string `json:"questionId" binding:"required,max=100"`
	Answer     string `json:"answer" binding:"max=10"`
}

// CompleteSectionRequest is the payload for closing a section.
type CompleteSectionRequest struct {
	Answers []SubmittedAnswer `json:"answers" binding:"required,dive"`
}
