package models

import "encoding/json"

// RubricKind classifies a rubric entry
type RubricKind string

const (
	KindSection  RubricKind = "section"
	KindQuestion RubricKind = "question"
	KindBonus    RubricKind = "bonus"
)

// RubricItem is one entry of the grading rubric. Sections are headers and carry no points.
type RubricItem struct {
	ID     string     `json:"id"`
	Kind   RubricKind `json:"type"`
	Text   string     `json:"text"`
	Points *float64   `json:"points,omitempty"`
}

// IsScoring reports whether the item is graded (questions and bonus items)
func (i RubricItem) IsScoring() bool {
	return i.Kind == KindQuestion || i.Kind == KindBonus
}

// ItemScore is one model's score for one rubric item.
// Adjusted equals Score unless a calibration was applied.
type ItemScore struct {
	Score         float64 `json:"score"`
	Adjusted      float64 `json:"adjusted_score"`
	Justification string  `json:"justification"`
}

// GradeOutcome is the result of grading one submission with one model.
// A non-empty Error marks a failed outcome; the remaining fields are then zero.
type GradeOutcome struct {
	ModelID          string               `json:"model_name"`
	TotalScore       float64              `json:"score,omitempty"`
	OverallFeedback  string               `json:"feedback,omitempty"`
	Scores           map[string]ItemScore `json:"scores,omitempty"`
	DiscussionPoints []string             `json:"discussion_points,omitempty"`
	ApplicantName    string               `json:"applicant_name,omitempty"`
	RawResponse      json.RawMessage      `json:"raw_response,omitempty"`
	Error            string               `json:"error,omitempty"`
}

// Succeeded reports whether the model produced a valid grade
func (o GradeOutcome) Succeeded() bool {
	return o.Error == ""
}

// Failure builds a failed outcome for modelID
func Failure(modelID, message string) GradeOutcome {
	return GradeOutcome{ModelID: modelID, Error: message}
}

// RubricAverage is the cross-model mean for one rubric item
type RubricAverage struct {
	RubricID       string   `json:"rubric_id"`
	Label          string   `json:"label"`
	PointsPossible *float64 `json:"points_possible"`
	AvgScore       float64  `json:"avg_score"`
	NumModels      int      `json:"num_models"`
}

// ChatRequest is a provider-neutral completion request
type ChatRequest struct {
	System      string
	User        string
	Temperature float32
	JSONMode    bool
	MaxTokens   int
}
