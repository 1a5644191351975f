package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"grading-service/internal/rubric"
)

// ErrInvalidResponse marks a model answer that does not match the grading schema
var ErrInvalidResponse = errors.New("invalid model response")

// ScoreEntry is one validated rubric score
type ScoreEntry struct {
	ID            string
	Score         float64
	Justification string
}

// GradeResponse is a validated model answer
type GradeResponse struct {
	Scores           []ScoreEntry
	OverallFeedback  string
	TotalScore       float64
	DiscussionPoints []string
	ApplicantName    string
}

type wireScore struct {
	ID            *string  `json:"id"`
	Score         *float64 `json:"score"`
	Justification *string  `json:"justification"`
}

type wireResponse struct {
	Scores           *[]wireScore `json:"scores"`
	OverallFeedback  *string      `json:"overall_feedback"`
	TotalScore       *float64     `json:"total_score"`
	DiscussionPoints []string     `json:"discussion_points"`
	ApplicantName    *string      `json:"applicant_name"`
}

const scoreEpsilon = 1e-9

// StripCodeFences removes markdown code fences around a JSON body
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```JSON")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	return text
}

// ParseGradeResponse decodes raw model output and validates it against catalog.
// Any deviation from the expected shape is reported as ErrInvalidResponse.
func ParseGradeResponse(raw string, catalog *rubric.Catalog, excluded []string) (*GradeResponse, error) {
	body := StripCodeFences(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if wire.TotalScore == nil {
		return nil, fmt.Errorf("%w: missing total_score", ErrInvalidResponse)
	}
	if *wire.TotalScore == 0 {
		return nil, fmt.Errorf("%w: total_score is zero", ErrInvalidResponse)
	}
	if wire.OverallFeedback == nil || strings.TrimSpace(*wire.OverallFeedback) == "" {
		return nil, fmt.Errorf("%w: missing overall_feedback", ErrInvalidResponse)
	}
	if wire.Scores == nil {
		return nil, fmt.Errorf("%w: missing scores", ErrInvalidResponse)
	}

	skip := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		skip[id] = true
	}

	out := &GradeResponse{
		Scores:          make([]ScoreEntry, 0, len(*wire.Scores)),
		OverallFeedback: strings.TrimSpace(*wire.OverallFeedback),
		TotalScore:      *wire.TotalScore,
	}

	seen := make(map[string]bool, len(*wire.Scores))
	for i, s := range *wire.Scores {
		if s.ID == nil || strings.TrimSpace(*s.ID) == "" {
			return nil, fmt.Errorf("%w: scores[%d] has no id", ErrInvalidResponse, i)
		}
		id, ok := catalog.NormalizeID(*s.ID)
		if !ok {
			return nil, fmt.Errorf("%w: scores[%d] has unknown rubric id %q", ErrInvalidResponse, i, *s.ID)
		}
		if skip[id] {
			return nil, fmt.Errorf("%w: scores[%d] grades excluded item %s", ErrInvalidResponse, i, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate score for %s", ErrInvalidResponse, id)
		}
		seen[id] = true

		if s.Score == nil {
			return nil, fmt.Errorf("%w: %s has no score", ErrInvalidResponse, id)
		}
		if limit := catalog.PointsPossible(id); *s.Score < 0 || (limit != nil && *s.Score > *limit+scoreEpsilon) {
			return nil, fmt.Errorf("%w: %s score %v out of range", ErrInvalidResponse, id, *s.Score)
		}

		entry := ScoreEntry{ID: id, Score: *s.Score}
		if s.Justification != nil {
			entry.Justification = strings.TrimSpace(*s.Justification)
		}
		out.Scores = append(out.Scores, entry)
	}

	for _, p := range wire.DiscussionPoints {
		if p = strings.TrimSpace(p); p != "" {
			out.DiscussionPoints = append(out.DiscussionPoints, p)
		}
	}

	if wire.ApplicantName != nil {
		out.ApplicantName = strings.TrimSpace(*wire.ApplicantName)
	}

	return out, nil
}
