package llm

import (
	"errors"
	"testing"

	"grading-service/internal/rubric"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("  {\"a\":1} "))
}

func TestParseGradeResponse(t *testing.T) {
	raw := "```json\n" + `{
		"scores": [
			{"id": "a1", "score": 1.0, "justification": " clear "},
			{"id": "B1", "score": 0.5, "justification": "thin"}
		],
		"overall_feedback": "Solid work",
		"total_score": 1.5,
		"discussion_points": ["Why Lisbon?", " ", "Who is your mentor?"],
		"applicant_name": " Jane Doe "
	}` + "\n```"

	resp, err := ParseGradeResponse(raw, rubric.Default(), []string{rubric.DiscussionItemID})
	require.NoError(t, err)

	require.Len(t, resp.Scores, 2)
	assert.Equal(t, "A1", resp.Scores[0].ID)
	assert.Equal(t, "clear", resp.Scores[0].Justification)
	assert.Equal(t, 1.5, resp.TotalScore)
	assert.Equal(t, "Solid work", resp.OverallFeedback)
	assert.Equal(t, []string{"Why Lisbon?", "Who is your mentor?"}, resp.DiscussionPoints)
	assert.Equal(t, "Jane Doe", resp.ApplicantName)
}

func TestParseGradeResponseRejects(t *testing.T) {
	cases := map[string]string{
		"not json":          `the essay is great`,
		"array":             `[{"total_score": 3}]`,
		"null":              `null`,
		"missing total":     `{"scores": [], "overall_feedback": "ok"}`,
		"zero total":        `{"scores": [], "overall_feedback": "ok", "total_score": 0}`,
		"string total":      `{"scores": [], "overall_feedback": "ok", "total_score": "12"}`,
		"empty feedback":    `{"scores": [], "overall_feedback": "  ", "total_score": 3}`,
		"missing scores":    `{"overall_feedback": "ok", "total_score": 3}`,
		"unknown id":        `{"scores": [{"id": "Z9", "score": 1}], "overall_feedback": "ok", "total_score": 1}`,
		"section id":        `{"scores": [{"id": "A", "score": 1}], "overall_feedback": "ok", "total_score": 1}`,
		"excluded id":       `{"scores": [{"id": "G", "score": 1}], "overall_feedback": "ok", "total_score": 1}`,
		"duplicate id":      `{"scores": [{"id": "A1", "score": 1}, {"id": "a1", "score": 1}], "overall_feedback": "ok", "total_score": 2}`,
		"missing score":     `{"scores": [{"id": "A1"}], "overall_feedback": "ok", "total_score": 1}`,
		"non-numeric score": `{"scores": [{"id": "A1", "score": "1"}], "overall_feedback": "ok", "total_score": 1}`,
		"score over max":    `{"scores": [{"id": "A1", "score": 2}], "overall_feedback": "ok", "total_score": 2}`,
		"negative score":    `{"scores": [{"id": "A1", "score": -1}], "overall_feedback": "ok", "total_score": 1}`,
		"trailing garbage":  `{"scores": [], "overall_feedback": "ok", "total_score": 1} extra`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGradeResponse(raw, rubric.Default(), []string{rubric.DiscussionItemID})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidResponse))
		})
	}
}
