package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"grading-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// LedgerRepository persists submissions, grades, training data and calibrations
type LedgerRepository interface {
	UpsertApplicant(ctx context.Context, fullName string) (*models.Applicant, error)
	SaveGradedSubmission(ctx context.Context, sub *models.Submission, grades []models.GradeRow, scores []models.RubricScoreRow) error
	ListSubmissions(ctx context.Context, limit int) ([]models.SubmissionSummary, error)
	GetSubmission(ctx context.Context, id string) (*models.SubmissionSummary, error)
	GetGrades(ctx context.Context, submissionID string) ([]models.GradeRow, error)
	GetRubricScores(ctx context.Context, submissionID string) ([]models.RubricScoreRow, error)
	DeleteSubmission(ctx context.Context, id string) error

	CreateTrainingExample(ctx context.Context, ex *models.TrainingExample) error
	InsertLineScores(ctx context.Context, rows []models.TrainingLineScore) error

	ResidualsByModelRubric(ctx context.Context) ([]models.Residual, error)
	UpsertCalibrations(ctx context.Context, rows []models.ModelCalibration) error
	ListCalibrations(ctx context.Context) ([]models.ModelCalibration, error)

	Purge(ctx context.Context) []models.TableResult
}

// purgeOrder lists tables children first so foreign keys never block a delete
var purgeOrder = []string{
	"rubric_scores",
	"grades",
	"submissions",
	"training_line_scores",
	"training_examples",
	"model_calibrations",
	"applicants",
}

type ledgerRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewLedgerRepository(db *sqlx.DB, logger *zap.Logger) LedgerRepository {
	return &ledgerRepository{db: db, logger: logger}
}

// NormalizeName case-folds, trims and collapses inner whitespace
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func (r *ledgerRepository) UpsertApplicant(ctx context.Context, fullName string) (*models.Applicant, error) {
	fullName = strings.Join(strings.Fields(fullName), " ")
	normalized := NormalizeName(fullName)
	if normalized == "" {
		return nil, fmt.Errorf("applicant name is empty")
	}

	insert := r.db.Rebind(`
		INSERT INTO applicants (id, full_name, normalized_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (normalized_name) DO NOTHING`)
	if _, err := r.db.ExecContext(ctx, insert, uuid.NewString(), fullName, normalized, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to insert applicant: %w", err)
	}

	var a models.Applicant
	query := r.db.Rebind(`SELECT id, full_name, normalized_name, created_at FROM applicants WHERE normalized_name = ?`)
	if err := r.db.GetContext(ctx, &a, query, normalized); err != nil {
		return nil, fmt.Errorf("failed to get applicant: %w", err)
	}
	return &a, nil
}

func (r *ledgerRepository) SaveGradedSubmission(ctx context.Context, sub *models.Submission, grades []models.GradeRow, scores []models.RubricScoreRow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO submissions (
			id, file_name, original_filename, applicant_id, text_chars_count,
			final_average_score, weighted_total, is_training, training_example_id, created_at
		) VALUES (
			:id, :file_name, :original_filename, :applicant_id, :text_chars_count,
			:final_average_score, :weighted_total, :is_training, :training_example_id, :created_at
		)`, sub)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}

	for i := range grades {
		grades[i].SubmissionID = sub.ID
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO grades (submission_id, model_name, score, feedback, raw_response, error)
			VALUES (:submission_id, :model_name, :score, :feedback, :raw_response, :error)`, grades[i])
		if err != nil {
			return fmt.Errorf("failed to insert grade for %s: %w", grades[i].ModelName, err)
		}
	}

	for i := range scores {
		scores[i].SubmissionID = sub.ID
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO rubric_scores (
				submission_id, model_name, rubric_id, points_possible, score, adjusted_score, justification
			) VALUES (
				:submission_id, :model_name, :rubric_id, :points_possible, :score, :adjusted_score, :justification
			)`, scores[i])
		if err != nil {
			return fmt.Errorf("failed to insert rubric score %s/%s: %w", scores[i].ModelName, scores[i].RubricID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit submission: %w", err)
	}

	r.logger.Debug("Saved graded submission",
		zap.String("submission_id", sub.ID),
		zap.Int("grades", len(grades)),
		zap.Int("rubric_scores", len(scores)))
	return nil
}

const submissionSummaryColumns = `
	s.id, s.file_name, s.original_filename, s.applicant_id, s.text_chars_count,
	s.final_average_score, s.weighted_total, s.is_training, s.training_example_id,
	s.created_at, a.full_name AS applicant_name`

// ListSubmissions returns the newest live submissions first
func (r *ledgerRepository) ListSubmissions(ctx context.Context, limit int) ([]models.SubmissionSummary, error) {
	if limit <= 0 {
		limit = 100
	}

	query := r.db.Rebind(`
		SELECT ` + submissionSummaryColumns + `
		FROM submissions s
		LEFT JOIN applicants a ON a.id = s.applicant_id
		WHERE s.is_training = ?
		ORDER BY s.created_at DESC
		LIMIT ?`)

	var out []models.SubmissionSummary
	if err := r.db.SelectContext(ctx, &out, query, false, limit); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return out, nil
}

func (r *ledgerRepository) GetSubmission(ctx context.Context, id string) (*models.SubmissionSummary, error) {
	query := r.db.Rebind(`
		SELECT ` + submissionSummaryColumns + `
		FROM submissions s
		LEFT JOIN applicants a ON a.id = s.applicant_id
		WHERE s.id = ?`)

	var out models.SubmissionSummary
	if err := r.db.GetContext(ctx, &out, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &out, nil
}

func (r *ledgerRepository) GetGrades(ctx context.Context, submissionID string) ([]models.GradeRow, error) {
	query := r.db.Rebind(`
		SELECT id, submission_id, model_name, score, feedback, raw_response, error
		FROM grades WHERE submission_id = ? ORDER BY id`)

	var out []models.GradeRow
	if err := r.db.SelectContext(ctx, &out, query, submissionID); err != nil {
		return nil, fmt.Errorf("failed to get grades: %w", err)
	}
	return out, nil
}

func (r *ledgerRepository) GetRubricScores(ctx context.Context, submissionID string) ([]models.RubricScoreRow, error) {
	query := r.db.Rebind(`
		SELECT id, submission_id, model_name, rubric_id, points_possible, score, adjusted_score, justification
		FROM rubric_scores WHERE submission_id = ? ORDER BY id`)

	var out []models.RubricScoreRow
	if err := r.db.SelectContext(ctx, &out, query, submissionID); err != nil {
		return nil, fmt.Errorf("failed to get rubric scores: %w", err)
	}
	return out, nil
}

// DeleteSubmission removes a submission with its grades and rubric scores
func (r *ledgerRepository) DeleteSubmission(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM rubric_scores WHERE submission_id = ?`,
		`DELETE FROM grades WHERE submission_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), id); err != nil {
			return fmt.Errorf("failed to delete submission children: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM submissions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	r.logger.Info("Submission deleted", zap.String("submission_id", id))
	return nil
}

func (r *ledgerRepository) CreateTrainingExample(ctx context.Context, ex *models.TrainingExample) error {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO training_examples (
			id, training_set_name, file_name, text, final_score, notes, embedding, created_at
		) VALUES (
			:id, :training_set_name, :file_name, :text, :final_score, :notes, :embedding, :created_at
		)`, ex)
	if err != nil {
		return fmt.Errorf("failed to insert training example: %w", err)
	}
	return nil
}

// InsertLineScores stores human scores; a repeated rubric id overwrites the earlier row
func (r *ledgerRepository) InsertLineScores(ctx context.Context, rows []models.TrainingLineScore) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO training_line_scores (example_id, rubric_id, points_possible, score, justification)
			VALUES (:example_id, :rubric_id, :points_possible, :score, :justification)
			ON CONFLICT (example_id, rubric_id) DO UPDATE SET
				points_possible = excluded.points_possible,
				score = excluded.score,
				justification = excluded.justification`, row)
		if err != nil {
			return fmt.Errorf("failed to insert line score %s: %w", row.RubricID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit line scores: %w", err)
	}
	return nil
}

func (r *ledgerRepository) ResidualsByModelRubric(ctx context.Context) ([]models.Residual, error) {
	var out []models.Residual
	err := r.db.SelectContext(ctx, &out, `
		SELECT model_name, rubric_id, avg_residual, n
		FROM v_training_residuals_by_model_rubric
		ORDER BY model_name, rubric_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read residuals: %w", err)
	}
	return out, nil
}

// UpsertCalibrations overwrites rows keyed by (model_name, rubric_id)
func (r *ledgerRepository) UpsertCalibrations(ctx context.Context, rows []models.ModelCalibration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO model_calibrations (model_name, rubric_id, bias, scale, updated_at)
			VALUES (:model_name, :rubric_id, :bias, :scale, :updated_at)
			ON CONFLICT (model_name, rubric_id) DO UPDATE SET
				bias = excluded.bias,
				scale = excluded.scale,
				updated_at = excluded.updated_at`, row)
		if err != nil {
			return fmt.Errorf("failed to upsert calibration %s/%s: %w", row.ModelName, row.RubricID, err)
		}
	}

	return tx.Commit()
}

func (r *ledgerRepository) ListCalibrations(ctx context.Context) ([]models.ModelCalibration, error) {
	var out []models.ModelCalibration
	err := r.db.SelectContext(ctx, &out, `
		SELECT model_name, rubric_id, bias, scale, updated_at
		FROM model_calibrations
		ORDER BY model_name, rubric_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list calibrations: %w", err)
	}
	return out, nil
}

// Purge empties every ledger table and keeps going past failures
func (r *ledgerRepository) Purge(ctx context.Context) []models.TableResult {
	results := make([]models.TableResult, 0, len(purgeOrder))
	for _, table := range purgeOrder {
		res := models.TableResult{Table: table, OK: true}
		if _, err := r.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			res.OK = false
			res.Error = err.Error()
			r.logger.Error("Failed to purge table", zap.String("table", table), zap.Error(err))
		}
		results = append(results, res)
	}
	return results
}
