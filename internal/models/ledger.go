package models

import "time"

// Applicant is a person submissions are attributed to
type Applicant struct {
	ID             string    `json:"id" db:"id"`
	FullName       string    `json:"full_name" db:"full_name"`
	NormalizedName string    `json:"-" db:"normalized_name"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Submission is one graded document
type Submission struct {
	ID                string    `json:"id" db:"id"`
	FileName          string    `json:"file_name" db:"file_name"`
	OriginalFilename  string    `json:"original_filename" db:"original_filename"`
	ApplicantID       *string   `json:"applicant_id,omitempty" db:"applicant_id"`
	TextCharsCount    int       `json:"text_chars_count" db:"text_chars_count"`
	FinalAverageScore float64   `json:"final_average_score" db:"final_average_score"`
	WeightedTotal     float64   `json:"weighted_total" db:"weighted_total"`
	IsTraining        bool      `json:"is_training" db:"is_training"`
	TrainingExampleID *string   `json:"training_example_id,omitempty" db:"training_example_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// SubmissionSummary is a listing row joined with the applicant name
type SubmissionSummary struct {
	Submission
	ApplicantName *string `json:"applicant_name" db:"applicant_name"`
	LetterGrade   string  `json:"letter_grade,omitempty" db:"-"`
}

// GradeRow is the persisted per-model outcome
type GradeRow struct {
	ID           int64    `json:"id" db:"id"`
	SubmissionID string   `json:"submission_id" db:"submission_id"`
	ModelName    string   `json:"model_name" db:"model_name"`
	Score        *float64 `json:"score,omitempty" db:"score"`
	Feedback     *string  `json:"feedback,omitempty" db:"feedback"`
	RawResponse  *string  `json:"raw_response,omitempty" db:"raw_response"`
	Error        *string  `json:"error,omitempty" db:"error"`
}

// RubricScoreRow is one (submission, model, rubric item) score
type RubricScoreRow struct {
	ID             int64    `json:"id" db:"id"`
	SubmissionID   string   `json:"submission_id" db:"submission_id"`
	ModelName      string   `json:"model_name" db:"model_name"`
	RubricID       string   `json:"rubric_id" db:"rubric_id"`
	PointsPossible *float64 `json:"points_possible" db:"points_possible"`
	Score          float64  `json:"score" db:"score"`
	AdjustedScore  float64  `json:"adjusted_score" db:"adjusted_score"`
	Justification  string   `json:"justification" db:"justification"`
}

// TrainingExample is a human-graded reference document
type TrainingExample struct {
	ID              string    `json:"id" db:"id"`
	TrainingSetName string    `json:"training_set_name" db:"training_set_name"`
	FileName        string    `json:"file_name" db:"file_name"`
	Text            string    `json:"-" db:"text"`
	FinalScore      float64   `json:"final_score" db:"final_score"`
	Notes           *string   `json:"notes,omitempty" db:"notes"`
	Embedding       *string   `json:"-" db:"embedding"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// TrainingLineScore is the human ground truth for one rubric item
type TrainingLineScore struct {
	ExampleID      string   `json:"example_id" db:"example_id"`
	RubricID       string   `json:"rubric_id" db:"rubric_id"`
	PointsPossible *float64 `json:"points_possible,omitempty" db:"points_possible"`
	Score          float64  `json:"score" db:"score"`
	Justification  string   `json:"justification" db:"justification"`
}

// ModelCalibration is the stored correction for one (model, rubric item) pair
type ModelCalibration struct {
	ModelName string    `json:"model_name" db:"model_name"`
	RubricID  string    `json:"rubric_id" db:"rubric_id"`
	Bias      float64   `json:"bias" db:"bias"`
	Scale     float64   `json:"scale" db:"scale"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Apply corrects a raw score and clamps it to [0, max] when max is known
func (c ModelCalibration) Apply(raw float64, max *float64) float64 {
	scale := c.Scale
	if scale == 0 {
		scale = 1
	}
	v := (raw + c.Bias) * scale
	if v < 0 {
		v = 0
	}
	if max != nil && v > *max {
		v = *max
	}
	return v
}

// Residual is the mean model-minus-human difference for one (model, rubric item) pair
type Residual struct {
	ModelName   string  `db:"model_name"`
	RubricID    string  `db:"rubric_id"`
	AvgResidual float64 `db:"avg_residual"`
	Samples     int     `db:"n"`
}

// TableResult reports the outcome of purging one table
type TableResult struct {
	Table string `json:"table"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
