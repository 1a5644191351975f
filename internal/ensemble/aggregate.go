package ensemble

import (
	"sort"

	"grading-service/internal/models"
	"grading-service/internal/rubric"
)

// Result is the aggregated grade of one submission
type Result struct {
	AverageScore     float64                `json:"average_score"`
	WeightedTotal    float64                `json:"weighted_total"`
	RubricAverages   []models.RubricAverage `json:"rubric_averages"`
	Results          []models.GradeOutcome  `json:"results"`
	DiscussionPoints []string               `json:"discussion_points,omitempty"`
	ApplicantName    string                 `json:"extracted_applicant_name,omitempty"`
}

// Successes returns the outcomes that produced a grade
func (r *Result) Successes() []models.GradeOutcome {
	out := make([]models.GradeOutcome, 0, len(r.Results))
	for _, o := range r.Results {
		if o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// Aggregate computes the ensemble statistics over outcomes.
// Failed outcomes are kept in Results but never counted in any mean.
// WeightedTotal is the plain sum of the per-item means.
func Aggregate(outcomes []models.GradeOutcome, catalog *rubric.Catalog, maxDiscussionPoints int) *Result {
	res := &Result{
		Results:        outcomes,
		RubricAverages: []models.RubricAverage{},
	}

	type acc struct {
		sum float64
		n   int
	}
	items := make(map[string]*acc)

	var (
		totalSum  float64
		successes int
		seenPoint = make(map[string]bool)
	)

	for _, o := range outcomes {
		if !o.Succeeded() {
			continue
		}
		successes++
		totalSum += o.TotalScore

		for id, s := range o.Scores {
			a, ok := items[id]
			if !ok {
				a = &acc{}
				items[id] = a
			}
			a.sum += s.Adjusted
			a.n++
		}

		if res.ApplicantName == "" && o.ApplicantName != "" {
			res.ApplicantName = o.ApplicantName
		}

		for _, p := range o.DiscussionPoints {
			if seenPoint[p] || len(res.DiscussionPoints) >= maxDiscussionPoints {
				continue
			}
			seenPoint[p] = true
			res.DiscussionPoints = append(res.DiscussionPoints, p)
		}
	}

	if successes == 0 {
		return res
	}
	res.AverageScore = totalSum / float64(successes)

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		oi, oj := catalog.Order(ids[i]), catalog.Order(ids[j])
		if oi != oj {
			return oi < oj
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		a := items[id]
		avg := a.sum / float64(a.n)
		res.RubricAverages = append(res.RubricAverages, models.RubricAverage{
			RubricID:       id,
			Label:          catalog.Label(id),
			PointsPossible: catalog.PointsPossible(id),
			AvgScore:       avg,
			NumModels:      a.n,
		})
		res.WeightedTotal += avg
	}

	return res
}
