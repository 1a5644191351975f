package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"grading-service/internal/batch"
	"grading-service/internal/ensemble"
	"grading-service/internal/extract"
	"grading-service/internal/grademap"
	"grading-service/internal/metrics"
	"grading-service/internal/models"
	"grading-service/internal/repository"
	"grading-service/internal/rubric"
	"grading-service/internal/training"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrValidation marks requests rejected before any model is called
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks unknown submissions and jobs
	ErrNotFound = errors.New("not found")
)

type TextExtractor interface {
	Extract(ctx context.Context, fileName, declaredType string, data []byte) (string, error)
}

type Coordinator interface {
	Grade(ctx context.Context, text string) (*ensemble.Result, error)
}

type Calibrations interface {
	Recalibrate(ctx context.Context) (int, error)
	List(ctx context.Context) ([]models.ModelCalibration, error)
	Invalidate()
}

// Upload is one received document
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Limits bounds batch submissions
type Limits struct {
	MaxFiles            int
	MaxFileBytes        int64
	UploadsDir          string
	Parallelism         int
	SecondsPerItem      int
	DiscussionPointsMax int
}

// GradeResponse is the aggregated grade of one submission
type GradeResponse struct {
	SubmissionID string `json:"submission_id,omitempty"`
	*ensemble.Result
	LetterGrade string `json:"letter_grade"`
}

// SubmissionResult is a stored submission re-aggregated from its ledger rows
type SubmissionResult struct {
	Submission *models.SubmissionSummary `json:"submission"`
	*ensemble.Result
	LetterGrade string `json:"letter_grade"`
}

// GradingService owns every grading workflow behind the HTTP API
type GradingService struct {
	ledger      repository.LedgerRepository
	extractor   TextExtractor
	coordinator Coordinator
	calibration Calibrations
	ingestor    *training.Ingestor
	tracker     *batch.Tracker
	pool        *batch.Pool
	grades      *grademap.Table
	catalog     *rubric.Catalog
	limits      Limits
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewGradingService wires the service and its batch pool
func NewGradingService(
	ledger repository.LedgerRepository,
	extractor TextExtractor,
	coordinator Coordinator,
	calibration Calibrations,
	ingestor *training.Ingestor,
	tracker *batch.Tracker,
	notifier batch.Notifier,
	grades *grademap.Table,
	catalog *rubric.Catalog,
	limits Limits,
	m *metrics.Metrics,
	logger *zap.Logger,
) *GradingService {
	if limits.Parallelism <= 0 {
		limits.Parallelism = batch.DefaultParallelism
	}
	if limits.SecondsPerItem <= 0 {
		limits.SecondsPerItem = batch.DefaultSecondsPerItem
	}

	s := &GradingService{
		ledger:      ledger,
		extractor:   extractor,
		coordinator: coordinator,
		calibration: calibration,
		ingestor:    ingestor,
		tracker:     tracker,
		grades:      grades,
		catalog:     catalog,
		limits:      limits,
		metrics:     m,
		logger:      logger,
	}
	s.pool = batch.NewPool(tracker, s.processBatchItem, notifier, logger)
	return s
}

// Wait blocks until every running batch job has finished
func (s *GradingService) Wait() {
	s.pool.Wait()
}

// Grade extracts, grades and records one document.
// A failure to record is logged and leaves SubmissionID empty.
func (s *GradingService) Grade(ctx context.Context, up Upload, applicantName string) (*GradeResponse, error) {
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrValidation)
	}

	text, err := s.extractor.Extract(ctx, up.FileName, up.ContentType, up.Data)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) || errors.Is(err, extract.ErrEmptyText) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	res, err := s.coordinator.Grade(ctx, text)
	if err != nil {
		return nil, err
	}

	resp := &GradeResponse{
		Result:      res,
		LetterGrade: s.grades.Letter(res.WeightedTotal),
	}

	id, err := s.record(ctx, up.FileName, text, res, applicantName)
	if err != nil {
		s.metrics.IncPersistenceFailure("save_submission")
		s.logger.Error("Failed to record submission, returning unsaved grade",
			zap.String("file", up.FileName), zap.Error(err))
		return resp, nil
	}
	resp.SubmissionID = id

	return resp, nil
}

func (s *GradingService) record(ctx context.Context, fileName, text string, res *ensemble.Result, applicantName string) (string, error) {
	sub := &models.Submission{
		ID:                uuid.NewString(),
		FileName:          batch.SafeFileName(fileName),
		OriginalFilename:  fileName,
		TextCharsCount:    utf8.RuneCountInString(text),
		FinalAverageScore: res.AverageScore,
		WeightedTotal:     res.WeightedTotal,
	}

	name := strings.TrimSpace(applicantName)
	if name == "" {
		name = res.ApplicantName
	}
	if repository.NormalizeName(name) != "" {
		applicant, err := s.ledger.UpsertApplicant(ctx, name)
		if err != nil {
			// the grade is still worth keeping without an applicant
			s.metrics.IncPersistenceFailure("upsert_applicant")
			s.logger.Warn("Failed to record applicant", zap.String("applicant", name), zap.Error(err))
		} else {
			sub.ApplicantID = &applicant.ID
		}
	}

	grades, scores := ensemble.LedgerRows(res, s.catalog)
	if err := s.ledger.SaveGradedSubmission(ctx, sub, grades, scores); err != nil {
		return "", err
	}

	s.logger.Info("Submission recorded",
		zap.String("submission_id", sub.ID),
		zap.String("file", fileName),
		zap.Float64("weighted_total", res.WeightedTotal))
	return sub.ID, nil
}

// ListSubmissions returns the latest live submissions with letter grades
func (s *GradingService) ListSubmissions(ctx context.Context) ([]models.SubmissionSummary, error) {
	subs, err := s.ledger.ListSubmissions(ctx, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	for i := range subs {
		subs[i].LetterGrade = s.grades.Letter(subs[i].WeightedTotal)
	}
	return subs, nil
}

// Results rebuilds the aggregate view of a stored submission
func (s *GradingService) Results(ctx context.Context, id string) (*SubmissionResult, error) {
	sub, err := s.ledger.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: submission %s", ErrNotFound, id)
		}
		return nil, err
	}
	sub.LetterGrade = s.grades.Letter(sub.WeightedTotal)

	grades, err := s.ledger.GetGrades(ctx, id)
	if err != nil {
		return nil, err
	}
	scores, err := s.ledger.GetRubricScores(ctx, id)
	if err != nil {
		return nil, err
	}

	return &SubmissionResult{
		Submission:  sub,
		Result:      ensemble.FromLedger(grades, scores, s.catalog, s.limits.DiscussionPointsMax),
		LetterGrade: sub.LetterGrade,
	}, nil
}

// DeleteSubmission removes one submission and its grades
func (s *GradingService) DeleteSubmission(ctx context.Context, id string) error {
	if err := s.ledger.DeleteSubmission(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: submission %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}

// Purge empties the ledger and reports each table; it never stops early
func (s *GradingService) Purge(ctx context.Context) []models.TableResult {
	results := s.ledger.Purge(ctx)
	s.calibration.Invalidate()

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	s.logger.Warn("Ledger purged", zap.Int("tables", len(results)), zap.Int("failed", failed))
	return results
}
