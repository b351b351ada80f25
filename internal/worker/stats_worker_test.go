package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tolcsim-backend/internal/config"
	"github.com/stemsi/tolcsim-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatsWriter struct {
	mu        sync.Mutex
	bulkErr   error
	failUsers map[string]bool
	rows      []model.UserExamStats
}

func (f *fakeStatsWriter) BulkUpsert(_ context.Context, deltas []model.UserExamStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return f.bulkErr
	}
	f.rows = append(f.rows, deltas...)
	return nil
}

func (f *fakeStatsWriter) Upsert(_ context.Context, d model.UserExamStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers[d.UserID] {
		return errors.New("row rejected")
	}
	f.rows = append(f.rows, d)
	return nil
}

func (f *fakeStatsWriter) snapshot() []model.UserExamStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.UserExamStats(nil), f.rows...)
}

func event(t *testing.T, userID, examType string, correct, total int, at time.Time) queuedEvent {
	t.Helper()
	ev := model.SessionCompletedEvent{
		SessionID:   uuid.New(),
		UserID:      userID,
		ExamType:    examType,
		Correct:     correct,
		Total:       total,
		Percentage:  model.NewScore(correct, total).Percentage,
		CompletedAt: at,
	}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return queuedEvent{raw: string(raw), event: ev}
}

func TestAggregate(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	batch := []queuedEvent{
		event(t, "u1", "TOLC-I", 10, 20, t0),
		event(t, "u2", "TOLC-I", 5, 20, t0),
		event(t, "u1", "TOLC-I", 18, 20, t0.Add(time.Hour)),
		event(t, "u1", "TOLC-E", 3, 10, t0),
	}

	deltas, sources := aggregate(batch)
	require.Len(t, deltas, 3)
	require.Len(t, sources, 3)

	u1 := deltas[0]
	assert.Equal(t, "u1", u1.UserID)
	assert.Equal(t, "TOLC-I", u1.ExamType)
	assert.Equal(t, 2, u1.Attempts)
	assert.Equal(t, 28, u1.TotalCorrect)
	assert.Equal(t, 40, u1.TotalQuestions)
	assert.Equal(t, 90, u1.BestPercentage)
	assert.True(t, u1.LastCompletedAt.Equal(t0.Add(time.Hour)))
	assert.Equal(t, []string{batch[0].raw, batch[2].raw}, sources[0])

	assert.Equal(t, "u2", deltas[1].UserID)
	assert.Equal(t, "TOLC-E", deltas[2].ExamType)
}

func newTestWorker(t *testing.T, store StatsWriter) (*StatsWorker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStatsWorker(store, rdb, zerolog.Nop()), mr
}

func TestFlushFallbackRequeuesFailedRows(t *testing.T) {
	store := &fakeStatsWriter{
		bulkErr:   errors.New("deadlock detected"),
		failUsers: map[string]bool{"u2": true},
	}
	w, mr := newTestWorker(t, store)

	now := time.Now()
	batch := []queuedEvent{
		event(t, "u1", "TOLC-I", 10, 20, now),
		event(t, "u2", "TOLC-I", 5, 20, now),
		event(t, "u2", "TOLC-I", 7, 20, now),
	}
	w.flushSafe(context.Background(), batch)

	rows := store.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "u1", rows[0].UserID)

	// The raw events behind the failed row go back on the queue untouched.
	queued, err := mr.List(config.WorkerKey.PersistStatsQueue)
	require.NoError(t, err)
	assert.Equal(t, []string{batch[1].raw, batch[2].raw}, queued)
}

func TestStartDrainsQueue(t *testing.T) {
	store := &fakeStatsWriter{}
	w, mr := newTestWorker(t, store)

	now := time.Now()
	for _, e := range []queuedEvent{
		event(t, "u1", "TOLC-I", 10, 20, now),
		event(t, "u1", "TOLC-I", 20, 20, now),
	} {
		_, err := mr.RPush(config.WorkerKey.PersistStatsQueue, e.raw)
		require.NoError(t, err)
	}
	_, err := mr.RPush(config.WorkerKey.PersistStatsQueue, "not json")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		list, _ := mr.List(config.WorkerKey.PersistStatsQueue)
		return len(list) == 0
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	rows := store.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Attempts)
	assert.Equal(t, 30, rows[0].TotalCorrect)
	assert.Equal(t, 100, rows[0].BestPercentage)
}
