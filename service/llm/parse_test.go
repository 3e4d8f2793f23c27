package llm

import (
	"errors"
	"testing"

	"nullfake/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReviews(ids ...string) []models.Review {
	out := make([]models.Review, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Review{ID: id, Rating: 5, Text: "text " + id})
	}
	return out
}

func TestParseScores_Shapes(t *testing.T) {
	reviews := sampleReviews("r1", "r2")

	cases := map[string]string{
		"array":           `[{"id":"r1","score":10},{"id":"r2","score":90}]`,
		"results":         `{"results":[{"id":"r1","score":10},{"id":"r2","score":90}]}`,
		"scores":          `{"scores":[{"id":"r1","score":"10"},{"id":"r2","score":90}]}`,
		"detailed_scores": `{"detailed_scores":{"r1":10,"r2":90}}`,
		"code fence":      "```json\n[{\"id\":\"r1\",\"score\":10},{\"id\":\"r2\",\"score\":90}]\n```",
		"prose around":    `Here are the scores: [{"id":"r1","score":10},{"id":"r2","score":90}] Hope this helps!`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			scores, err := ParseScores("openai", text, reviews)
			require.NoError(t, err)
			assert.Equal(t, Scores{"r1": 10, "r2": 90}, scores)
		})
	}
}

func TestParseScores_NumericIDs(t *testing.T) {
	scores, err := ParseScores("openai", `[{"id":1,"score":40}]`, sampleReviews("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, Scores{"1": 40}, scores)
}

func TestParseScores_ClampsAndDropsUnknown(t *testing.T) {
	text := `[{"id":"r1","score":150},{"id":"r2","score":-3},{"id":"ghost","score":50}]`
	scores, err := ParseScores("deepseek", text, sampleReviews("r1", "r2"))
	require.NoError(t, err)
	assert.Equal(t, Scores{"r1": 100, "r2": 0}, scores)
}

func TestParseScores_Invalid(t *testing.T) {
	reviews := sampleReviews("r1")
	cases := map[string]string{
		"empty":        "   ",
		"prose only":   "I cannot help with that.",
		"truncated":    `[{"id":"r1","score":10},{"id":"r2"`,
		"wrong shape":  `{"verdict":"fake"}`,
		"bad item":     `[{"id":"r1"}]`,
		"no match":     `[{"id":"other","score":10}]`,
		"scalar array": `[1,2,3]`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScores("ollama", text, reviews)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidResponseFormat))

			var ife *InvalidResponseFormatError
			require.True(t, errors.As(err, &ife))
			assert.Equal(t, "ollama", ife.Provider)
		})
	}
}

func TestExtractBalanced(t *testing.T) {
	got, ok := extractBalanced(`noise {"a":"}[","b":[1,{"c":2}]} trailing }`)
	require.True(t, ok)
	assert.Equal(t, `{"a":"}[","b":[1,{"c":2}]}`, got)

	got, ok = extractBalanced(`x ["esc \" ]", 1] y`)
	require.True(t, ok)
	assert.Equal(t, `["esc \" ]", 1]`, got)

	_, ok = extractBalanced(`{"a":[1,2}`)
	assert.False(t, ok)

	_, ok = extractBalanced(`no json here`)
	assert.False(t, ok)
}
