package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionEventType names a progress notification pushed to the session owner.
type SessionEventType string

const (
	EventSectionStarted   SessionEventType = "section_started"
	EventSectionCompleted SessionEventType = "section_completed"
	EventSessionCompleted SessionEventType = "session_completed"
)

// SessionEvent is published on the owner's channel after a successful write.
type SessionEvent struct {
	Type       SessionEventType `json:"type"`
	SessionID  uuid.UUID        `json:"session_id"`
	UserID     string           `json:"user_id"`
	ExamType   string           `json:"exam_type"`
	SectionID  string           `json:"section_id,omitempty"`
	Status     SessionStatus    `json:"status"`
	Score      *Score           `json:"score,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// ForCandidate returns a copy safe to send to the session owner: answer keys
// are blanked on sections that are not completed yet.
func (s *ExamSession) ForCandidate() *ExamSession {
	out := s.Clone()
	for i := range out.Metadata.Sections {
		sec := &out.Metadata.Sections[i]
		if sec.Status == SectionStatusCompleted {
			continue
		}
		for j := range sec.Questions.Items {
			sec.Questions.Items[j].CorrectAnswer = ""
		}
	}
	return out
}
