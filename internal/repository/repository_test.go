package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"grading-service/internal/batch"
	"grading-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := NewDB(DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, MigrateDB(db, logger))
	return db
}

func ptr[T any](v T) *T { return &v }

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "jane doe", NormalizeName("  Jane \t  DOE "))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestUpsertApplicantDeduplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(newTestDB(t), zap.NewNop())

	first, err := repo.UpsertApplicant(ctx, "Jane  Doe")
	require.NoError(t, err)
	second, err := repo.UpsertApplicant(ctx, " jane doe ")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Jane Doe", second.FullName)

	_, err = repo.UpsertApplicant(ctx, "  ")
	assert.Error(t, err)
}

func saveSubmission(t *testing.T, repo LedgerRepository, id string, training bool, exampleID *string) {
	t.Helper()
	sub := &models.Submission{
		ID:                id,
		FileName:          id + ".pdf",
		OriginalFilename:  id + ".pdf",
		TextCharsCount:    1200,
		FinalAverageScore: 20,
		WeightedTotal:     19.5,
		IsTraining:        training,
		TrainingExampleID: exampleID,
	}
	grades := []models.GradeRow{
		{ModelName: "m1", Score: ptr(20.0), Feedback: ptr("solid")},
		{ModelName: "m2", Error: ptr("timeout")},
	}
	scores := []models.RubricScoreRow{
		{ModelName: "m1", RubricID: "A1", PointsPossible: ptr(2.0), Score: 2, AdjustedScore: 2, Justification: "clear"},
		{ModelName: "m1", RubricID: "A2", PointsPossible: ptr(1.0), Score: 1, AdjustedScore: 1, Justification: "ok"},
	}
	require.NoError(t, repo.SaveGradedSubmission(context.Background(), sub, grades, scores))
}

func TestSubmissionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(newTestDB(t), zap.NewNop())

	applicant, err := repo.UpsertApplicant(ctx, "Jane Doe")
	require.NoError(t, err)

	sub := &models.Submission{ID: "s1", FileName: "s1.pdf", OriginalFilename: "essay.pdf", ApplicantID: &applicant.ID}
	require.NoError(t, repo.SaveGradedSubmission(ctx, sub, []models.GradeRow{{ModelName: "m1", Score: ptr(21.0)}}, nil))
	saveSubmission(t, repo, "s2", false, nil)

	list, err := repo.ListSubmissions(ctx, 100)
	require.NoError(t, err)
	require.Len(t, list, 2)

	got, err := repo.GetSubmission(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.ApplicantName)
	assert.Equal(t, "Jane Doe", *got.ApplicantName)
	assert.Equal(t, "essay.pdf", got.OriginalFilename)

	grades, err := repo.GetGrades(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, grades, 2)
	assert.Nil(t, grades[1].Score)
	assert.Equal(t, "timeout", *grades[1].Error)

	scores, err := repo.GetRubricScores(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "A1", scores[0].RubricID)

	require.NoError(t, repo.DeleteSubmission(ctx, "s2"))
	_, err = repo.GetSubmission(ctx, "s2")
	assert.True(t, errors.Is(err, ErrNotFound))
	scores, err = repo.GetRubricScores(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, scores)

	assert.True(t, errors.Is(repo.DeleteSubmission(ctx, "s2"), ErrNotFound))
}

func TestTrainingSubmissionsAreNotListed(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(newTestDB(t), zap.NewNop())

	ex := &models.TrainingExample{TrainingSetName: "default", FileName: "gold.pdf", Text: "text", FinalScore: 22}
	require.NoError(t, repo.CreateTrainingExample(ctx, ex))
	saveSubmission(t, repo, "t1", true, &ex.ID)

	list, err := repo.ListSubmissions(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestResidualsAndCalibrations(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(newTestDB(t), zap.NewNop())

	ex := &models.TrainingExample{TrainingSetName: "default", FileName: "gold.pdf", Text: "text", FinalScore: 22}
	require.NoError(t, repo.CreateTrainingExample(ctx, ex))
	require.NoError(t, repo.InsertLineScores(ctx, []models.TrainingLineScore{
		{ExampleID: ex.ID, RubricID: "A1", Score: 1.5},
		{ExampleID: ex.ID, RubricID: "A2", Score: 0},
		{ExampleID: ex.ID, RubricID: "A2", Score: 0.5},
	}))

	saveSubmission(t, repo, "t1", true, &ex.ID)
	// live submissions never contribute residuals
	saveSubmission(t, repo, "live", false, nil)

	residuals, err := repo.ResidualsByModelRubric(ctx)
	require.NoError(t, err)
	require.Len(t, residuals, 2)
	assert.Equal(t, "A1", residuals[0].RubricID)
	assert.InDelta(t, 0.5, residuals[0].AvgResidual, 1e-9)
	assert.Equal(t, 1, residuals[0].Samples)
	assert.InDelta(t, 0.5, residuals[1].AvgResidual, 1e-9)

	now := time.Now().UTC()
	rows := []models.ModelCalibration{{ModelName: "m1", RubricID: "A1", Bias: -0.5, Scale: 1, UpdatedAt: now}}
	require.NoError(t, repo.UpsertCalibrations(ctx, rows))
	rows[0].Bias = -0.25
	require.NoError(t, repo.UpsertCalibrations(ctx, rows))

	cals, err := repo.ListCalibrations(ctx)
	require.NoError(t, err)
	require.Len(t, cals, 1)
	assert.InDelta(t, -0.25, cals[0].Bias, 1e-9)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewLedgerRepository(db, zap.NewNop())

	saveSubmission(t, repo, "s1", false, nil)
	_, err := repo.UpsertApplicant(ctx, "Someone")
	require.NoError(t, err)

	results := repo.Purge(ctx)
	require.Len(t, results, len(purgeOrder))
	for _, r := range results {
		assert.True(t, r.OK, r.Table)
	}

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM grades`))
	assert.Zero(t, n)
}

func TestJobRepository(t *testing.T) {
	ctx := context.Background()
	store := NewJobRepository(newTestDB(t), zap.NewNop())
	tracker := batch.NewTracker(store, nil, zap.NewNop())

	job, err := tracker.CreateJob(ctx, []batch.FileMeta{{Name: "a.pdf", Size: 10}, {Name: "b.docx", Size: 20}}, 2)
	require.NoError(t, err)
	require.NoError(t, tracker.UpdateTask(ctx, job.ID, job.Items[0].ID, models.TaskUpdate{Status: models.TaskDone, SubmissionID: "s1"}))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Completed)
	assert.Equal(t, "s1", got.Items[0].SubmissionID)
	assert.Equal(t, models.TaskQueued, got.Items[1].Status)

	jobs, err := store.ListJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	_, err = store.GetJob(ctx, "missing")
	assert.True(t, errors.Is(err, batch.ErrJobNotFound))
	assert.True(t, errors.Is(store.SaveJob(ctx, &models.Job{ID: "missing"}), batch.ErrJobNotFound))
}
