package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tolcsim-backend/internal/config"
	"github.com/stemsi/tolcsim-backend/internal/model"
)

const (
	StatsBatchSize    = 50
	StatsBatchTimeout = 2 * time.Second
	StatsPollTimeout  = 1 * time.Second
)

// StatsWriter persists aggregated stats deltas.
type StatsWriter interface {
	BulkUpsert(ctx context.Context, deltas []model.UserExamStats) error
	Upsert(ctx context.Context, d model.UserExamStats) error
}

// StatsWorker drains session completion events into user_exam_stats.
type StatsWorker struct {
	store StatsWriter
	rdb   *redis.Client
	log   zerolog.Logger
}

func NewStatsWorker(store StatsWriter, rdb *redis.Client, log zerolog.Logger) *StatsWorker {
	return &StatsWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "stats_worker").Logger(),
	}
}

// queuedEvent keeps the raw payload so failed rows can be requeued verbatim.
type queuedEvent struct {
	raw   string
	event model.SessionCompletedEvent
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *StatsWorker) Start(ctx context.Context) {
	w.log.Info().Msg("StatsWorker started")

	batch := make([]queuedEvent, 0, StatsBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= StatsBatchSize || time.Since(lastFlush) >= StatsBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.flushSafe(flushCtx, batch)
			cancel()
			return

		default:
			item, err := w.rdb.BLPop(ctx, StatsPollTimeout, config.WorkerKey.PersistStatsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(StatsPollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var ev model.SessionCompletedEvent
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			if ev.UserID == "" || ev.ExamType == "" {
				w.log.Error().Str("payload", item[1]).Msg("Stats event without user or exam type")
				continue
			}

			batch = append(batch, queuedEvent{raw: item[1], event: ev})
		}
	}
}

// ----------------------------------------------------------------
// Aggregation
// ----------------------------------------------------------------

type statsKey struct {
	userID   string
	examType string
}

// aggregate folds events into one delta per (user, exam type). The raw
// payloads behind each delta are returned in the same order.
func aggregate(batch []queuedEvent) ([]model.UserExamStats, [][]string) {
	index := make(map[statsKey]int)
	var (
		deltas  []model.UserExamStats
		sources [][]string
	)

	for _, q := range batch {
		ev := q.event
		k := statsKey{userID: ev.UserID, examType: ev.ExamType}
		i, ok := index[k]
		if !ok {
			i = len(deltas)
			index[k] = i
			deltas = append(deltas, model.UserExamStats{UserID: ev.UserID, ExamType: ev.ExamType})
			sources = append(sources, nil)
		}

		d := &deltas[i]
		d.Attempts++
		d.TotalCorrect += ev.Correct
		d.TotalQuestions += ev.Total
		if ev.Percentage > d.BestPercentage {
			d.BestPercentage = ev.Percentage
		}
		if ev.CompletedAt.After(d.LastCompletedAt) {
			d.LastCompletedAt = ev.CompletedAt
		}
		sources[i] = append(sources[i], q.raw)
	}
	return deltas, sources
}

// ----------------------------------------------------------------
// Bulk upsert with single-row fallback
// ----------------------------------------------------------------

func (w *StatsWorker) flushSafe(ctx context.Context, batch []queuedEvent) {
	if len(batch) == 0 {
		return
	}

	deltas, sources := aggregate(batch)

	if err := w.store.BulkUpsert(ctx, deltas); err != nil {
		w.log.Warn().Err(err).Int("rows", len(deltas)).Msg("bulk stats upsert failed, using fallback")

		for i, d := range deltas {
			if err := w.store.Upsert(ctx, d); err != nil {
				w.log.Error().Err(err).
					Str("user_id", d.UserID).
					Str("exam_type", d.ExamType).
					Msg("single stats upsert failed, requeueing")
				w.requeue(sources[i])
			}
		}
		return
	}

	w.log.Debug().Int("events", len(batch)).Int("rows", len(deltas)).Msg("Stats batch persisted")
}

func (w *StatsWorker) requeue(raws []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	values := make([]interface{}, len(raws))
	for i, r := range raws {
		values[i] = r
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.PersistStatsQueue, values...).Err(); err != nil {
		w.log.Error().Err(err).Int("events", len(raws)).Msg("Requeue failed, stats events lost")
	}
}
