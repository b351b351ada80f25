package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidOptions is returned when stored options cannot be coerced into
// a letter → text map.
var ErrInvalidOptions = errors.New("invalid question options")

// StoredQuestion is a question row as it lives in the question bank.
// Options are kept raw because the bank holds several historical encodings.
type StoredQuestion struct {
	ID            uuid.UUID       `json:"id"`
	TopicID       string          `json:"topic_id"`
	QuestionText  string          `json:"question_text"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer string          `json:"correct_answer"`
	Difficulty    *string         `json:"difficulty,omitempty"`
}

// Question is the normalized shape carried inside a section once it starts.
type Question struct {
	ID            string            `json:"id"`
	TopicID       string            `json:"topic_id,omitempty"`
	Text          string            `json:"text"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Difficulty    string            `json:"difficulty,omitempty"`
	// Placeholder marks synthetic content generated when the bank had nothing to offer.
	Placeholder bool `json:"placeholder,omitempty"`
}

// QuestionForCandidate is the client-facing question (no correct answer).
type QuestionForCandidate struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	Options     map[string]string `json:"options"`
	Placeholder bool              `json:"placeholder,omitempty"`
}

// ForCandidate strips the answer key.
func (q Question) ForCandidate() QuestionForCandidate {
	return QuestionForCandidate{
		ID:          q.ID,
		Text:        q.Text,
		Options:     q.Options,
		Placeholder: q.Placeholder,
	}
}

// Normalize coerces a stored question into the canonical shape.
func (s StoredQuestion) Normalize() (Question, error) {
	opts, err := NormalizeOptions(s.Options)
	if err != nil {
		return Question{}, fmt.Errorf("question %s: %w", s.ID, err)
	}

	q := Question{
		ID:            s.ID.String(),
		TopicID:       s.TopicID,
		Text:          s.QuestionText,
		Options:       opts,
		CorrectAnswer: NormalizeCorrectAnswer(s.CorrectAnswer, opts),
	}
	if s.Difficulty != nil {
		q.Difficulty = *s.Difficulty
	}
	return q, nil
}

// OptionLetter returns the option letter for a zero-based position (0 → "A").
func OptionLetter(i int) string {
	return string(rune('A' + i))
}

// NormalizeOptions accepts the three encodings found in the bank:
//   - a JSON object {"a": "...", "B": "..."}
//   - a JSON array ["...", "..."] or [{"key": "A", "text": "..."}]
//   - either of the above wrapped in a JSON string
func NormalizeOptions(raw json.RawMessage) (map[string]string, error) {
	return normalizeOptions(raw, true)
}

func normalizeOptions(raw json.RawMessage, allowString bool) (map[string]string, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, ErrInvalidOptions
	}

	switch data[0] {
	case '"':
		if !allowString {
			return nil, ErrInvalidOptions
		}
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		return normalizeOptions(json.RawMessage(inner), false)

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		if len(items) == 0 || len(items) > 26 {
			return nil, ErrInvalidOptions
		}
		opts := make(map[string]string, len(items))
		for i, item := range items {
			key, text := arrayOption(item)
			if key == "" {
				key = OptionLetter(i)
			}
			opts[key] = text
		}
		return opts, nil

	case '{':
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		if len(m) == 0 {
			return nil, ErrInvalidOptions
		}
		opts := make(map[string]string, len(m))
		for k, v := range m {
			opts[strings.ToUpper(strings.TrimSpace(k))] = stringify(v)
		}
		return opts, nil
	}

	return nil, ErrInvalidOptions
}

// arrayOption reads one array element. Objects may name their own letter.
func arrayOption(item json.RawMessage) (key, text string) {
	var v any
	if err := json.Unmarshal(item, &v); err != nil {
		return "", string(item)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return "", stringify(v)
	}
	for _, k := range []string{"key", "letter", "label", "id"} {
		if s, ok := obj[k].(string); ok && s != "" {
			key = strings.ToUpper(strings.TrimSpace(s))
			break
		}
	}
	for _, k := range []string{"text", "value", "content"} {
		if val, ok := obj[k]; ok {
			return key, stringify(val)
		}
	}
	return key, ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// NormalizeCorrectAnswer maps a stored answer key to an option letter. The bank
// stores letters, zero-based indices or the option text itself.
func NormalizeCorrectAnswer(raw string, options map[string]string) string {
	ans := strings.TrimSpace(raw)
	upper := strings.ToUpper(ans)
	if _, ok := options[upper]; ok {
		return upper
	}

	if idx, err := strconv.Atoi(ans); err == nil && idx >= 0 && idx < len(options) {
		if _, ok := options[OptionLetter(idx)]; ok {
			return OptionLetter(idx)
		}
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if ans != "" && strings.EqualFold(strings.TrimSpace(options[k]), ans) {
			return k
		}
	}
	return upper
}
