package ensemble

import (
	"encoding/json"
	"testing"

	"grading-service/internal/models"
	"grading-service/internal/rubric"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRowsRoundTripThroughAggregate(t *testing.T) {
	catalog := rubric.Default()

	ok := success(24, map[string]float64{"B1": 1, "A1": 2})
	ok.ModelID = "m1"
	ok.Scores["A1"] = models.ItemScore{Score: 2, Adjusted: 1.5, Justification: "strong"}
	ok.RawResponse = json.RawMessage(`{"discussion_points":["Ask about the summer job"],"applicant_name":"Jane Doe"}`)

	res := Aggregate([]models.GradeOutcome{ok, models.Failure("m2", "timeout")}, catalog, 3)

	grades, scores := LedgerRows(res, catalog)
	require.Len(t, grades, 2)
	assert.Equal(t, 24.0, *grades[0].Score)
	assert.Nil(t, grades[0].Error)
	assert.Equal(t, "timeout", *grades[1].Error)

	require.Len(t, scores, 2)
	assert.Equal(t, "A1", scores[0].RubricID)
	assert.Equal(t, 2.0, scores[0].Score)
	assert.Equal(t, 1.5, scores[0].AdjustedScore)
	require.NotNil(t, scores[0].PointsPossible)

	rebuilt := FromLedger(grades, scores, catalog, 3)
	assert.Equal(t, 24.0, rebuilt.AverageScore)
	assert.InDelta(t, 2.5, rebuilt.WeightedTotal, 1e-9)
	assert.Equal(t, "Jane Doe", rebuilt.ApplicantName)
	assert.Equal(t, []string{"Ask about the summer job"}, rebuilt.DiscussionPoints)
	require.Len(t, rebuilt.Results, 2)
	assert.False(t, rebuilt.Results[1].Succeeded())
}
