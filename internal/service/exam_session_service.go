package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tolcsim-backend/internal/config"
	"github.com/stemsi/tolcsim-backend/internal/metrics"
	"github.com/stemsi/tolcsim-backend/internal/model"
	"github.com/stemsi/tolcsim-backend/internal/repository"
	"github.com/stemsi/tolcsim-backend/internal/response"
)

const (
	// maxWriteAttempts bounds read-apply-CAS cycles for one request.
	maxWriteAttempts  = 5
	sideEffectTimeout = 2 * time.Second
)

// errUnchanged short-circuits a mutation that has nothing to write.
var errUnchanged = errors.New("session unchanged")

// ExamSessionService runs the section lifecycle over whole session documents.
type ExamSessionService struct {
	sessions    SessionStore
	provisioner *QuestionProvisioner
	rdb         *redis.Client
	log         zerolog.Logger
	now         func() time.Time
	retryMax    int
	resultsTTL  time.Duration
}

// NewExamSessionService creates a new ExamSessionService. rdb may be nil, in
// which case results are never cached and no events or stats are emitted.
func NewExamSessionService(
	sessions SessionStore,
	provisioner *QuestionProvisioner,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		sessions:    sessions,
		provisioner: provisioner,
		rdb:         rdb,
		log:         log.With().Str("component", "exam_session_service").Logger(),
		now:         time.Now,
		retryMax:    cfg.StorageRetryMax,
		resultsTTL:  cfg.ResultsCacheTTL,
	}
}

// StartSectionResult is returned when a section opens.
type StartSectionResult struct {
	Session   *model.ExamSession           `json:"session"`
	SectionID string                       `json:"section_id"`
	Questions []model.QuestionForCandidate `json:"questions"`
}

// Create builds a new session from the catalog layout of examType.
func (s *ExamSessionService) Create(ctx context.Context, userID, examType string) (*model.ExamSession, error) {
	exam, ok := model.LookupExamType(examType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExamType, examType)
	}

	session := model.NewExamSession(userID, exam, s.now())
	err := retryStorage(ctx, s.retryMax, func() error {
		return s.sessions.Create(ctx, session)
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("user_id", userID).
		Str("exam_type", exam.Code).
		Msg("Exam session created")
	return session, nil
}

// Get returns the owner's view of a session.
func (s *ExamSessionService) Get(ctx context.Context, userID string, id uuid.UUID) (*model.ExamSession, error) {
	session, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return session.ForCandidate(), nil
}

// StartSection opens a pending section and attaches its question set.
// Only one section may be open at a time.
func (s *ExamSessionService) StartSection(ctx context.Context, userID string, id uuid.UUID, sectionID string) (*StartSectionResult, error) {
	// Provision at most once per request even if the write is retried.
	var (
		questions   []model.Question
		provisioned bool
	)

	session, _, err := s.mutate(ctx, userID, id, func(next *model.ExamSession) error {
		sec, ok := next.Metadata.Section(sectionID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrSectionNotFound, sectionID)
		}
		if sec.Status != model.SectionStatusPending {
			return fmt.Errorf("%w: %w", ErrInvalidState,
				&model.TransitionError{SectionID: sec.ID, From: sec.Status, To: model.SectionStatusInProgress})
		}
		if open, busy := next.Metadata.OpenSection(); busy {
			return fmt.Errorf("%w: %w", ErrInvalidState, &model.TransitionError{
				SectionID: sec.ID,
				From:      sec.Status,
				To:        model.SectionStatusInProgress,
				Reason:    fmt.Sprintf("section %q is still in progress", open.ID),
			})
		}

		if !provisioned {
			questions = s.provisioner.Provision(ctx, sec)
			provisioned = true
		}
		if err := sec.Start(questions, s.now()); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		TryFinalize(next, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	sec, _ := session.Metadata.Section(sectionID)
	out := make([]model.QuestionForCandidate, len(sec.Questions.Items))
	for i, q := range sec.Questions.Items {
		out[i] = q.ForCandidate()
	}

	metrics.SectionTransitions.WithLabelValues(session.ExamType, string(model.SectionStatusInProgress)).Inc()
	s.publish(ctx, session, model.EventSectionStarted, sec)

	return &StartSectionResult{
		Session:   session.ForCandidate(),
		SectionID: sectionID,
		Questions: out,
	}, nil
}

// CompleteSection scores the submitted answers and closes the section. A
// repeated call on an already completed section returns the session as is.
func (s *ExamSessionService) CompleteSection(ctx context.Context, userID string, id uuid.UUID, sectionID string, answers []model.SubmittedAnswer) (*model.ExamSession, error) {
	if err := ValidateSubmission(answers); err != nil {
		return nil, err
	}

	session, changed, err := s.mutate(ctx, userID, id, func(next *model.ExamSession) error {
		sec, ok := next.Metadata.Section(sectionID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrSectionNotFound, sectionID)
		}
		if sec.Status == model.SectionStatusCompleted {
			return errUnchanged
		}

		records, score := ScoreAnswers(sec.Questions, answers)
		if err := sec.Complete(records, score, s.now()); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		TryFinalize(next, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		s.log.Debug().
			Str("session_id", id.String()).
			Str("section_id", sectionID).
			Msg("Section already completed, ignoring duplicate submission")
		return session.ForCandidate(), nil
	}

	sec, _ := session.Metadata.Section(sectionID)
	metrics.SectionTransitions.WithLabelValues(session.ExamType, string(model.SectionStatusCompleted)).Inc()
	s.publish(ctx, session, model.EventSectionCompleted, sec)

	if session.Status == model.SessionStatusCompleted {
		s.onSessionCompleted(ctx, session)
	}
	return session.ForCandidate(), nil
}

// GetResults returns the formatted results of a completed session.
func (s *ExamSessionService) GetResults(ctx context.Context, userID string, id uuid.UUID) (*ResultsView, error) {
	if view, ok := s.cachedResults(ctx, id); ok {
		if view.UserID != userID {
			return nil, ErrForbidden
		}
		return view, nil
	}

	session, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	view, err := FormatResults(session)
	if err != nil {
		return nil, err
	}
	s.cacheResults(ctx, view)
	return view, nil
}

// ListHistory returns a page of the user's completed sessions, newest first.
func (s *ExamSessionService) ListHistory(ctx context.Context, userID string, page, perPage int) ([]model.SessionSummary, *response.Pagination, error) {
	offset := (page - 1) * perPage

	var (
		sessions []model.ExamSession
		total    int
	)
	err := retryStorage(ctx, s.retryMax, func() error {
		var err error
		sessions, total, err = s.sessions.ListCompletedByUser(ctx, userID, perPage, offset)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list history: %w", err)
	}

	summaries := make([]model.SessionSummary, len(sessions))
	for i := range sessions {
		summaries[i] = sessions[i].Summarize()
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return summaries, pagination, nil
}

// ─── Internals ──────────────────────────────────────────────────────

// load reads a session and checks ownership.
func (s *ExamSessionService) load(ctx context.Context, userID string, id uuid.UUID) (*model.ExamSession, error) {
	var session *model.ExamSession
	err := retryStorage(ctx, s.retryMax, func() error {
		var err error
		session, err = s.sessions.GetByID(ctx, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID {
		return nil, ErrForbidden
	}
	return session, nil
}

// mutate applies fn to a fresh copy of the session and writes it back with a
// compare-and-swap on the version. A lost race restarts from a new read.
// It reports whether anything was written.
func (s *ExamSessionService) mutate(ctx context.Context, userID string, id uuid.UUID, fn func(*model.ExamSession) error) (*model.ExamSession, bool, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		current, err := s.load(ctx, userID, id)
		if err != nil {
			return nil, false, err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			if errors.Is(err, errUnchanged) {
				return current, false, nil
			}
			return nil, false, err
		}

		err = retryStorage(ctx, s.retryMax, func() error {
			return s.sessions.Update(ctx, next)
		})
		if errors.Is(err, repository.ErrVersionConflict) {
			metrics.SessionWriteConflicts.Inc()
			s.log.Debug().
				Str("session_id", id.String()).
				Int("attempt", attempt).
				Msg("Session write lost a race, retrying")
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("update session: %w", err)
		}
		return next, true, nil
	}

	return nil, false, fmt.Errorf("%w: session %s is under heavy contention", ErrServiceUnavailable, id)
}

// sideEffectContext detaches post-write work from the caller's cancellation
// while still bounding it.
func sideEffectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}

func (s *ExamSessionService) publish(ctx context.Context, session *model.ExamSession, typ model.SessionEventType, sec *model.SectionState) {
	if s.rdb == nil {
		return
	}

	event := model.SessionEvent{
		Type:       typ,
		SessionID:  session.ID,
		UserID:     session.UserID,
		ExamType:   session.ExamType,
		Status:     session.Status,
		OccurredAt: s.now(),
	}
	if sec != nil {
		event.SectionID = sec.ID
		event.Score = sec.Score
	}
	if typ == model.EventSessionCompleted {
		event.Score = session.Metadata.OverallScore
	}

	raw, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode session event")
		return
	}

	pctx, cancel := sideEffectContext(ctx)
	defer cancel()
	channel := config.CacheKey.UserSessionsChannel(session.UserID)
	if err := s.rdb.Publish(pctx, channel, raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("Failed to publish session event")
	}
}

func (s *ExamSessionService) onSessionCompleted(ctx context.Context, session *model.ExamSession) {
	metrics.SessionsCompleted.WithLabelValues(session.ExamType).Inc()

	overall := model.Score{}
	if session.Metadata.OverallScore != nil {
		overall = *session.Metadata.OverallScore
	}
	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("user_id", session.UserID).
		Int("correct", overall.Correct).
		Int("total", overall.Total).
		Int("percentage", overall.Percentage).
		Msg("Exam session completed")

	s.publish(ctx, session, model.EventSessionCompleted, nil)

	if s.rdb == nil {
		return
	}

	if view, err := FormatResults(session); err == nil {
		s.cacheResults(ctx, view)
	}

	raw, err := json.Marshal(model.SessionCompletedEvent{
		SessionID:   session.ID,
		UserID:      session.UserID,
		ExamType:    session.ExamType,
		Correct:     overall.Correct,
		Total:       overall.Total,
		Percentage:  overall.Percentage,
		CompletedAt: *session.CompletedAt,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode stats event")
		return
	}

	qctx, cancel := sideEffectContext(ctx)
	defer cancel()
	if err := s.rdb.RPush(qctx, config.WorkerKey.PersistStatsQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Failed to queue stats event")
	}
}

func (s *ExamSessionService) cachedResults(ctx context.Context, id uuid.UUID) (*ResultsView, bool) {
	if s.rdb == nil {
		return nil, false
	}
	raw, err := s.rdb.Get(ctx, config.CacheKey.SessionResultsKey(id.String())).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("Results cache read failed")
		}
		return nil, false
	}
	var view ResultsView
	if err := json.Unmarshal(raw, &view); err != nil {
		s.log.Warn().Err(err).Msg("Discarding corrupt results cache entry")
		return nil, false
	}
	return &view, true
}

func (s *ExamSessionService) cacheResults(ctx context.Context, view *ResultsView) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	cctx, cancel := sideEffectContext(ctx)
	defer cancel()
	key := config.CacheKey.SessionResultsKey(view.SessionID.String())
	if err := s.rdb.Set(cctx, key, raw, s.resultsTTL).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Results cache write failed")
	}
}
