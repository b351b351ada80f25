package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/tolcsim-backend/internal/metrics"
	"github.com/stemsi/tolcsim-backend/internal/model"
)

// QuestionProvisioner picks the question set for a section at start time.
//
// Content availability wins over fidelity: a section never starts empty
// while planned_count > 0. Each degraded stage is logged and counted so
// operators can see when learners got off-topic or synthetic questions.
type QuestionProvisioner struct {
	store        QuestionStore
	placeholders bool
	retryMax     int
	log          zerolog.Logger
}

// NewQuestionProvisioner creates a new QuestionProvisioner. When placeholders
// is false an exhausted bank yields an empty question list instead. Each bank
// lookup is retried up to retryMax times on transient errors.
func NewQuestionProvisioner(store QuestionStore, placeholders bool, retryMax int, log zerolog.Logger) *QuestionProvisioner {
	return &QuestionProvisioner{
		store:        store,
		placeholders: placeholders,
		retryMax:     retryMax,
		log:          log.With().Str("component", "question_provisioner").Logger(),
	}
}

// Provision returns min(planned, available) bank questions, or planned
// placeholders when the bank has nothing. Store errors are absorbed.
func (p *QuestionProvisioner) Provision(ctx context.Context, sec *model.SectionState) []model.Question {
	want := sec.PlannedCount
	if want <= 0 {
		return []model.Question{}
	}

	log := p.log.With().Str("section_id", sec.ID).Int("planned", want).Logger()
	set := newQuestionSet(want, log)

	primary, err := p.lookup(ctx, func() ([]model.StoredQuestion, error) {
		return p.store.FindByTopics(ctx, sec.TopicIDs, want)
	})
	if err != nil {
		log.Warn().Err(err).Strs("topics", sec.TopicIDs).Msg("Topic lookup failed")
	}
	set.add(primary)

	// Stage 1: top up a partial set from any topic. Asking for want+len
	// guarantees enough fresh rows even if every chosen id comes back.
	toppedUp := false
	if n := set.len(); n > 0 && n < want {
		extra, err := p.lookup(ctx, func() ([]model.StoredQuestion, error) {
			return p.store.FindAny(ctx, want+n)
		})
		if err != nil {
			log.Warn().Err(err).Msg("Top-up lookup failed")
		} else {
			toppedUp = true
		}
		set.add(extra)
		metrics.ProvisioningFallbacks.WithLabelValues("fill_any_topic").Inc()
		log.Warn().
			Int("on_topic", n).
			Int("final", set.len()).
			Msg("Section short on topic questions, filled from other topics")
	}

	// Stage 2: still short or empty. A successful top-up already saw the
	// whole bank, so only an empty set or a failed top-up gets here.
	if n := set.len(); n < want && !toppedUp {
		anyQ, err := p.lookup(ctx, func() ([]model.StoredQuestion, error) {
			return p.store.FindAny(ctx, want+n)
		})
		if err != nil {
			log.Warn().Err(err).Msg("Bank-wide lookup failed")
		}
		set.add(anyQ)
		metrics.ProvisioningFallbacks.WithLabelValues("any_topic").Inc()
		log.Warn().
			Int("before", n).
			Int("final", set.len()).
			Msg("Section short on questions, using any available questions")
	}

	// Stage 3: bank empty or unreachable.
	if set.len() == 0 {
		if !p.placeholders {
			log.Error().Msg("Question bank exhausted and placeholders disabled, section starts empty")
			return []model.Question{}
		}
		metrics.ProvisioningFallbacks.WithLabelValues("placeholder").Inc()
		log.Error().Msg("Question bank exhausted, serving placeholder questions")
		return PlaceholderQuestions(sec.ID, sec.Name, want)
	}

	return set.items
}

func (p *QuestionProvisioner) lookup(ctx context.Context, find func() ([]model.StoredQuestion, error)) ([]model.StoredQuestion, error) {
	var out []model.StoredQuestion
	err := retryStorage(ctx, p.retryMax, func() error {
		var err error
		out, err = find()
		return err
	})
	return out, err
}

// questionSet collects normalized, de-duplicated questions up to a cap.
type questionSet struct {
	limit int
	items []model.Question
	seen  map[string]struct{}
	log   zerolog.Logger
}

func newQuestionSet(limit int, log zerolog.Logger) *questionSet {
	return &questionSet{
		limit: limit,
		items: make([]model.Question, 0, limit),
		seen:  make(map[string]struct{}, limit),
		log:   log,
	}
}

func (s *questionSet) len() int { return len(s.items) }

func (s *questionSet) add(stored []model.StoredQuestion) {
	for _, sq := range stored {
		if len(s.items) >= s.limit {
			return
		}
		q, err := sq.Normalize()
		if err != nil {
			s.log.Warn().Err(err).Msg("Skipping malformed question")
			continue
		}
		if _, dup := s.seen[q.ID]; dup {
			continue
		}
		s.seen[q.ID] = struct{}{}
		s.items = append(s.items, q)
	}
}

// PlaceholderQuestions synthesizes n four-option questions whose first option is correct.
func PlaceholderQuestions(sectionID, sectionName string, n int) []model.Question {
	questions := make([]model.Question, n)
	for i := range questions {
		questions[i] = model.Question{
			ID:   fmt.Sprintf("placeholder-%s-%d", sectionID, i+1),
			Text: fmt.Sprintf("Domanda di esercitazione %d di %d (%s)", i+1, n, sectionName),
			Options: map[string]string{
				"A": "Opzione A",
				"B": "Opzione B",
				"C": "Opzione C",
				"D": "Opzione D",
			},
			CorrectAnswer: "A",
			Placeholder:   true,
		}
	}
	return questions
}
