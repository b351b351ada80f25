package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tolcsim-backend/internal/config"
	"github.com/stemsi/tolcsim-backend/internal/model"
	"github.com/stemsi/tolcsim-backend/internal/repository"
	"github.com/stretchr/testify/require"
)

// ─── Question bank ──────────────────────────────────────────────────

type fakeQuestionStore struct {
	mu       sync.Mutex
	byTopic  map[string][]model.StoredQuestion
	all      []model.StoredQuestion
	topicErr error
	anyErr   error
	// anyFlaky fails that many FindAny calls before answering normally.
	anyFlaky int
	calls    int
	anyCalls int
}

func (f *fakeQuestionStore) FindByTopics(_ context.Context, topicIDs []string, limit int) ([]model.StoredQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.topicErr != nil {
		return nil, f.topicErr
	}
	var out []model.StoredQuestion
	for _, t := range topicIDs {
		out = append(out, f.byTopic[t]...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeQuestionStore) FindAny(_ context.Context, limit int) ([]model.StoredQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.anyCalls++
	if f.anyErr != nil {
		return nil, f.anyErr
	}
	if f.anyFlaky > 0 {
		f.anyFlaky--
		return nil, errors.New("connection reset by peer")
	}
	out := f.all
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeQuestionStore) anyCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.anyCalls
}

func (f *fakeQuestionStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func storedQuestions(topic string, n int) []model.StoredQuestion {
	out := make([]model.StoredQuestion, n)
	for i := range out {
		out[i] = model.StoredQuestion{
			ID:            uuid.New(),
			TopicID:       topic,
			QuestionText:  fmt.Sprintf("%s %d", topic, i),
			Options:       json.RawMessage(`["uno","due","tre","quattro"]`),
			CorrectAnswer: "B",
		}
	}
	return out
}

// ─── Session documents ──────────────────────────────────────────────

// memSessionStore keeps encoded documents so callers never share memory
// with the store, and enforces the version compare-and-swap.
type memSessionStore struct {
	mu      sync.Mutex
	docs    map[uuid.UUID][]byte
	updates int
	getErr  error
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{docs: make(map[uuid.UUID][]byte)}
}

func (m *memSessionStore) Create(_ context.Context, s *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Version = 1
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.docs[s.ID] = raw
	return nil
}

func (m *memSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	raw, ok := m.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	var s model.ExamSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *memSessionStore) Update(_ context.Context, s *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[s.ID]
	if !ok {
		return repository.ErrVersionConflict
	}
	var current model.ExamSession
	if err := json.Unmarshal(raw, &current); err != nil {
		return err
	}
	if current.Version != s.Version {
		return repository.ErrVersionConflict
	}
	s.Version++
	s.UpdatedAt = time.Now()
	next, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.docs[s.ID] = next
	m.updates++
	return nil
}

func (m *memSessionStore) ListCompletedByUser(_ context.Context, userID string, limit, offset int) ([]model.ExamSession, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, raw := range m.docs {
		var s model.ExamSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, 0, err
		}
		if s.UserID == userID && s.Status == model.SessionStatusCompleted {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(*out[j].CompletedAt) {
			return out[i].CompletedAt.After(*out[j].CompletedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *memSessionStore) put(t *testing.T, s *model.ExamSession) {
	t.Helper()
	require.NoError(t, m.Create(context.Background(), s))
}

func (m *memSessionStore) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

// ─── Fixtures ───────────────────────────────────────────────────────

// twoSectionExam has two sections of two questions each.
var twoSectionExam = model.ExamType{
	Code:     "TOLC-T",
	Name:     "TOLC-T",
	Sections: []model.SectionConfig{
		{ID: "alpha", Name: "Alpha", TopicIDs: []string{"alpha"}, Questions: 2, Duration: 10},
		{ID: "beta", Name: "Beta", TopicIDs: []string{"beta"}, Questions: 2, Duration: 15},
	},
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:           "test-secret",
		JWTExpiry:           time.Hour,
		StorageRetryMax:     1,
		ResultsCacheTTL:     time.Minute,
		PlaceholderFallback: true,
	}
}

type serviceFixture struct {
	svc       *ExamSessionService
	sessions  *memSessionStore
	questions *fakeQuestionStore
	redis     *miniredis.Miniredis
	rdb       *redis.Client
}

// newServiceFixture wires a service over in-memory stores. withRedis adds a
// miniredis backend for the cache, events and stats queue.
func newServiceFixture(t *testing.T, withRedis bool) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		sessions:  newMemSessionStore(),
		questions: &fakeQuestionStore{
			byTopic: map[string][]model.StoredQuestion{
				"alpha":      storedQuestions("alpha", 2),
				"beta":       storedQuestions("beta", 2),
				"matematica": storedQuestions("matematica", 20),
			},
		},
	}
	for _, qs := range f.questions.byTopic {
		f.questions.all = append(f.questions.all, qs...)
	}

	if withRedis {
		f.redis = miniredis.RunT(t)
		f.rdb = redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
		t.Cleanup(func() { _ = f.rdb.Close() })
	}

	provisioner := NewQuestionProvisioner(f.questions, true, testConfig().StorageRetryMax, zerolog.Nop())
	f.svc = NewExamSessionService(f.sessions, provisioner, f.rdb, testConfig(), zerolog.Nop())
	return f
}

func (f *serviceFixture) newSession(t *testing.T, userID string) *model.ExamSession {
	t.Helper()
	s := model.NewExamSession(userID, twoSectionExam, time.Now().Add(-time.Hour))
	f.sessions.put(t, s)
	return s
}

// answerKey returns the stored correct letter for every question of a section.
func answerKey(t *testing.T, f *serviceFixture, sessionID uuid.UUID, sectionID string) map[string]string {
	t.Helper()
	s, err := f.sessions.GetByID(context.Background(), sessionID)
	require.NoError(t, err)
	sec, ok := s.Metadata.Section(sectionID)
	require.True(t, ok)
	key := make(map[string]string, len(sec.Questions.Items))
	for _, q := range sec.Questions.Items {
		key[q.ID] = q.CorrectAnswer
	}
	return key
}
