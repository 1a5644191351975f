package ensemble

import (
	"encoding/json"
	"sort"

	"grading-service/internal/models"
	"grading-service/internal/rubric"
)

// LedgerRows flattens a result into the rows persisted for a submission.
// Rubric rows are emitted per model in catalog order.
func LedgerRows(res *Result, catalog *rubric.Catalog) ([]models.GradeRow, []models.RubricScoreRow) {
	grades := make([]models.GradeRow, 0, len(res.Results))
	var scores []models.RubricScoreRow

	for _, o := range res.Results {
		row := models.GradeRow{ModelName: o.ModelID}
		if len(o.RawResponse) > 0 {
			raw := string(o.RawResponse)
			row.RawResponse = &raw
		}

		if !o.Succeeded() {
			msg := o.Error
			row.Error = &msg
			grades = append(grades, row)
			continue
		}

		total, feedback := o.TotalScore, o.OverallFeedback
		row.Score = &total
		row.Feedback = &feedback
		grades = append(grades, row)

		ids := make([]string, 0, len(o.Scores))
		for id := range o.Scores {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return catalog.Order(ids[i]) < catalog.Order(ids[j]) })

		for _, id := range ids {
			s := o.Scores[id]
			scores = append(scores, models.RubricScoreRow{
				ModelName:      o.ModelID,
				RubricID:       id,
				PointsPossible: catalog.PointsPossible(id),
				Score:          s.Score,
				AdjustedScore:  s.Adjusted,
				Justification:  s.Justification,
			})
		}
	}

	return grades, scores
}

// FromLedger rebuilds the aggregated result of a stored submission
func FromLedger(grades []models.GradeRow, scores []models.RubricScoreRow, catalog *rubric.Catalog, maxDiscussionPoints int) *Result {
	byModel := make(map[string]map[string]models.ItemScore)
	for _, s := range scores {
		if byModel[s.ModelName] == nil {
			byModel[s.ModelName] = make(map[string]models.ItemScore)
		}
		byModel[s.ModelName][s.RubricID] = models.ItemScore{
			Score:         s.Score,
			Adjusted:      s.AdjustedScore,
			Justification: s.Justification,
		}
	}

	outcomes := make([]models.GradeOutcome, 0, len(grades))
	for _, g := range grades {
		if g.Error != nil || g.Score == nil {
			msg := "no score recorded"
			if g.Error != nil {
				msg = *g.Error
			}
			outcomes = append(outcomes, models.Failure(g.ModelName, msg))
			continue
		}

		o := models.GradeOutcome{
			ModelID:    g.ModelName,
			TotalScore: *g.Score,
			Scores:     byModel[g.ModelName],
		}
		if g.Feedback != nil {
			o.OverallFeedback = *g.Feedback
		}
		if g.RawResponse != nil {
			o.RawResponse = json.RawMessage(*g.RawResponse)

			var extra struct {
				DiscussionPoints []string `json:"discussion_points"`
				ApplicantName    string   `json:"applicant_name"`
			}
			if json.Unmarshal(o.RawResponse, &extra) == nil {
				o.DiscussionPoints = extra.DiscussionPoints
				o.ApplicantName = extra.ApplicantName
			}
		}
		outcomes = append(outcomes, o)
	}

	return Aggregate(outcomes, catalog, maxDiscussionPoints)
}
