package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stemsi/tolcsim-backend/internal/config"
	"github.com/stemsi/tolcsim-backend/internal/database"
	"github.com/stemsi/tolcsim-backend/internal/logger"
	"github.com/stemsi/tolcsim-backend/internal/model"
	"github.com/stemsi/tolcsim-backend/internal/repository"
)

// seedQuestion is one entry of the seed file. Options may use any of the
// encodings the bank accepts (object, array or JSON-encoded string).
type seedQuestion struct {
	TopicID       string          `json:"topic_id" validate:"required,max=64"`
	QuestionText  string          `json:"question_text" validate:"required"`
	Options       json.RawMessage `json:"options" validate:"required"`
	CorrectAnswer string          `json:"correct_answer" validate:"required,max=200"`
	Difficulty    *string         `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

func main() {
	var (
		file   string
		dryRun bool
	)
	flag.StringVar(&file, "file", "questions.json", "Path to a JSON array of questions")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate the file without writing to the database")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	raw, err := os.ReadFile(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Failed to read seed file")
	}

	var entries []seedQuestion
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Fatal().Err(err).Msg("Seed file must be a JSON array of questions")
	}

	questions, rejected := prepare(entries)
	for _, msg := range rejected {
		log.Warn().Msg(msg)
	}
	fmt.Printf("=== %d valid question(s), %d rejected ===\n", len(questions), len(rejected))

	if dryRun || len(questions) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	n, err := repository.NewQuestionRepository(pool).BulkInsert(ctx, questions)
	if err != nil {
		log.Fatal().Err(err).Msg("Bulk insert failed")
	}
	fmt.Printf("Inserted %d question(s)\n", n)
}

// prepare validates every entry and keeps the ones that normalize cleanly.
func prepare(entries []seedQuestion) ([]model.StoredQuestion, []string) {
	v := govalidator.New(govalidator.WithRequiredStructEnabled())

	var (
		out      []model.StoredQuestion
		rejected []string
	)
	for i, e := range entries {
		if err := v.Struct(e); err != nil {
			rejected = append(rejected, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}

		q := model.StoredQuestion{
			ID:            uuid.New(),
			TopicID:       strings.TrimSpace(e.TopicID),
			QuestionText:  strings.TrimSpace(e.QuestionText),
			Options:       e.Options,
			CorrectAnswer: strings.TrimSpace(e.CorrectAnswer),
			Difficulty:    e.Difficulty,
		}
		normalized, err := q.Normalize()
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		if _, ok := normalized.Options[normalized.CorrectAnswer]; !ok {
			rejected = append(rejected, fmt.Sprintf("entry %d: correct answer %q matches no option", i, e.CorrectAnswer))
			continue
		}
		out = append(out, q)
	}
	return out, rejected
}
