package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOptions(t *testing.T) {
	want := map[string]string{"A": "uno", "B": "due"}

	cases := map[string]string{
		"object":           `{"a": "uno", "B": "due"}`,
		"array":            `["uno", "due"]`,
		"keyed objects":    `[{"key": "a", "text": "uno"}, {"key": "B", "text": "due"}]`,
		"string of array":  `"[\"uno\", \"due\"]"`,
		"string of object": `"{\"A\": \"uno\", \"b\": \"due\"}"`,
		"objects by value": `[{"value": "uno"}, {"value": "due"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := NormalizeOptions(json.RawMessage(raw))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalizeOptionsRejects(t *testing.T) {
	for _, raw := range []string{``, `null`, `[]`, `{}`, `42`, `"\"nested\""`} {
		_, err := NormalizeOptions(json.RawMessage(raw))
		assert.ErrorIs(t, err, ErrInvalidOptions, raw)
	}
}

func TestNormalizeCorrectAnswer(t *testing.T) {
	opts := map[string]string{"A": "3", "B": "4", "C": "Parigi"}

	assert.Equal(t, "B", NormalizeCorrectAnswer("b", opts))
	assert.Equal(t, "A", NormalizeCorrectAnswer("0", opts))
	assert.Equal(t, "C", NormalizeCorrectAnswer(" parigi ", opts))
	// "4" is out of index range, so it matches by text.
	assert.Equal(t, "B", NormalizeCorrectAnswer("4", opts))
	assert.Equal(t, "Z", NormalizeCorrectAnswer("z", opts))
}

func TestStoredQuestionNormalize(t *testing.T) {
	diff := "facile"
	id := uuid.New()
	sq := StoredQuestion{
		ID:            id,
		TopicID:       "matematica",
		QuestionText:  "Quanto fa 2+2?",
		Options:       json.RawMessage(`["3","4","5"]`),
		CorrectAnswer: "1",
		Difficulty:    &diff,
	}

	q, err := sq.Normalize()
	require.NoError(t, err)
	assert.Equal(t, id.String(), q.ID)
	assert.Equal(t, "B", q.CorrectAnswer)
	assert.Equal(t, "facile", q.Difficulty)
	assert.Len(t, q.Options, 3)

	fc := q.ForCandidate()
	raw, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_answer")
}

func TestStoredQuestionNormalizeBadOptions(t *testing.T) {
	_, err := StoredQuestion{ID: uuid.New(), Options: json.RawMessage(`null`)}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
