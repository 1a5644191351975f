package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"grading-service/internal/batch"
	"grading-service/internal/calibration"
	"grading-service/internal/ensemble"
	"grading-service/internal/grademap"
	"grading-service/internal/metrics"
	"grading-service/internal/models"
	"grading-service/internal/repository"
	"grading-service/internal/rubric"
	"grading-service/internal/service"
	"grading-service/internal/training"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type plainExtractor struct{}

func (plainExtractor) Extract(_ context.Context, _, _ string, data []byte) (string, error) {
	return string(data), nil
}

type fixedCoordinator struct{ fail bool }

func (c fixedCoordinator) Grade(context.Context, string) (*ensemble.Result, error) {
	if c.fail {
		return nil, &ensemble.AllFailedError{Failures: []models.GradeOutcome{models.Failure("m1", "timeout")}}
	}
	o := models.GradeOutcome{
		ModelID:    "m1",
		TotalScore: 28,
		Scores: map[string]models.ItemScore{
			"A1": {Score: 1.25, Adjusted: 1.25},
			"B1": {Score: 1, Adjusted: 1},
		},
	}
	return ensemble.Aggregate([]models.GradeOutcome{o}, rubric.Default(), 3), nil
}

func newRouter(t *testing.T, coord service.Coordinator) (*gin.Engine, *service.GradingService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db, err := repository.NewDB(repository.DriverSQLite, filepath.Join(t.TempDir(), "api.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.MigrateDB(db, logger))

	ledger := repository.NewLedgerRepository(db, logger)
	m := metrics.New()
	engine := calibration.NewEngine(ledger, m, logger)
	catalog := rubric.Default()
	ingestor := training.NewIngestor(ledger, plainExtractor{}, nil, coord, engine, catalog, 0, logger)
	tracker := batch.NewTracker(batch.NewMemoryStore(), m, logger)

	svc := service.NewGradingService(ledger, plainExtractor{}, coord, engine, ingestor, tracker, nil,
		grademap.Default(grademap.DefaultTolerance), catalog,
		service.Limits{MaxFiles: 5, MaxFileBytes: 1 << 20, UploadsDir: t.TempDir()}, m, logger)

	r := gin.New()
	NewHandler(svc, m, logger).RegisterRoutes(r)
	return r, svc
}

type formFile struct {
	field, name, body string
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGradeAndExport(t *testing.T) {
	r, _ := newRouter(t, fixedCoordinator{})

	rec := serve(r, multipartRequest(t, "/api/v1/grade", map[string]string{"applicant_name": "Jane Doe"},
		formFile{"file", "essay.pdf", "my essay"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var graded struct {
		SubmissionID   string                 `json:"submission_id"`
		AverageScore   float64                `json:"average_score"`
		WeightedTotal  float64                `json:"weighted_total"`
		LetterGrade    string                 `json:"letter_grade"`
		RubricAverages []models.RubricAverage `json:"rubric_averages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &graded))
	require.NotEmpty(t, graded.SubmissionID)
	assert.Equal(t, 28.0, graded.AverageScore)
	assert.InDelta(t, 2.25, graded.WeightedTotal, 1e-9)
	assert.Len(t, graded.RubricAverages, 2)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/results/"+graded.SubmissionID+"/export?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "submission_"+graded.SubmissionID+"_rubric.csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"rubric_id", "label", "points_possible", "avg_score", "num_models"}, rows[0])
	assert.Equal(t, "A1", rows[1][0])
	assert.Equal(t, "1.25", rows[1][2])
	assert.Equal(t, "1", rows[1][4])

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/results/"+graded.SubmissionID+"/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rubric_averages"`)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/results/"+graded.SubmissionID+"/export?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/submissions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Jane Doe")

	rec = serve(r, httptest.NewRequest(http.MethodDelete, "/api/v1/submissions/"+graded.SubmissionID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/submissions/"+graded.SubmissionID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGradeErrors(t *testing.T) {
	r, _ := newRouter(t, fixedCoordinator{fail: true})

	rec := serve(r, multipartRequest(t, "/api/v1/grade", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, multipartRequest(t, "/api/v1/grade", nil, formFile{"file", "empty.pdf", ""}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, multipartRequest(t, "/api/v1/grade", nil, formFile{"file", "essay.pdf", "text"}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "all models failed")
}

func TestBatchAndJobs(t *testing.T) {
	r, svc := newRouter(t, fixedCoordinator{})

	rec := serve(r, multipartRequest(t, "/api/v1/score/batch", nil,
		formFile{"files", "a.pdf", "essay a"},
		formFile{"files", "b.pdf", "essay b"}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted struct {
		JobID      string `json:"job_id"`
		ETASeconds int    `json:"eta_seconds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, 60, accepted.ETASeconds)

	svc.Wait()

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+accepted.JobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Completed  int `json:"completed"`
		ETASeconds int `json:"eta_seconds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 2, status.Completed)
	assert.Zero(t, status.ETASeconds)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/batch_nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, multipartRequest(t, "/api/v1/score/batch", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrainingRecalibrateAndPurge(t *testing.T) {
	r, _ := newRouter(t, fixedCoordinator{})

	rec := serve(r, multipartRequest(t, "/api/v1/training",
		map[string]string{"final_score": "26", "line_scores_json": `{"scores":[{"id":"A1","score":1}]}`},
		formFile{"file", "gold.docx", "gold essay"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"parsed_line_scores":1`)

	rec = serve(r, multipartRequest(t, "/api/v1/training", map[string]string{"final_score": "abc"},
		formFile{"file", "gold.docx", "gold essay"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/training/recalibrate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/calibrations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/admin/purge", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"table":"model_calibrations"`)
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newRouter(t, fixedCoordinator{})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteRubricCSVReportsWriteErrors(t *testing.T) {
	res := ensemble.Aggregate([]models.GradeOutcome{{
		ModelID:    "m1",
		TotalScore: 1,
		Scores:     map[string]models.ItemScore{"A1": {Score: 1, Adjusted: 1}},
	}}, rubric.Default(), 3)

	var buf bytes.Buffer
	require.NoError(t, writeRubricCSV(&buf, res))
	assert.Contains(t, buf.String(), "A1,")

	assert.Error(t, writeRubricCSV(failingWriter{}, res))
}
