package prompt

import (
	"strings"
	"testing"

	"grading-service/internal/rubric"

	"github.com/stretchr/testify/assert"
)

func TestBuildIsDeterministic(t *testing.T) {
	c := rubric.Default()

	a := Build(c, rubric.DiscussionItemID, "F2")
	b := Build(c, "F2", rubric.DiscussionItemID, "F2")

	assert.Equal(t, a.System, b.System)
	assert.Equal(t, []string{"F2", rubric.DiscussionItemID}, a.Excluded)
}

func TestBuildListsScoringItems(t *testing.T) {
	c := rubric.Default()
	p := Build(c, rubric.DiscussionItemID)

	for _, it := range c.ScoringExcluding(rubric.DiscussionItemID) {
		assert.Contains(t, p.System, `"id": "`+it.ID+`"`)
	}
	assert.NotContains(t, p.System, `"id": "G"`)
	assert.NotContains(t, p.System, `"id": "A",`, "section headers are not listed")
	assert.Contains(t, p.System, `"total_score"`)
	assert.Contains(t, p.System, `"overall_feedback"`)
}

func TestBuildDiscussionPoints(t *testing.T) {
	c := rubric.Default()

	with := Build(c, rubric.DiscussionItemID)
	assert.True(t, with.DiscussionPoints)
	assert.Contains(t, with.System, "discussion_points")

	without := Build(c)
	assert.False(t, without.DiscussionPoints)
	assert.NotContains(t, without.System, "discussion_points")
	assert.Contains(t, without.System, `"id": "G"`)
}

func TestUserMessage(t *testing.T) {
	msg := UserMessage("essay body")
	assert.True(t, strings.HasSuffix(msg, "essay body"))
}
