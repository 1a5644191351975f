package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"grading-service/internal/ensemble"
	"grading-service/internal/models"
	"grading-service/internal/rubric"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultSetName       = "default"
	DefaultEmbedMaxChars = 10000
)

// ErrInvalidInput marks ingestion requests rejected before any work is done
var ErrInvalidInput = errors.New("invalid training input")

// Store is the subset of the ledger ingestion writes to
type Store interface {
	CreateTrainingExample(ctx context.Context, ex *models.TrainingExample) error
	InsertLineScores(ctx context.Context, rows []models.TrainingLineScore) error
	SaveGradedSubmission(ctx context.Context, sub *models.Submission, grades []models.GradeRow, scores []models.RubricScoreRow) error
}

type TextExtractor interface {
	Extract(ctx context.Context, fileName, declaredType string, data []byte) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Grader interface {
	Grade(ctx context.Context, text string) (*ensemble.Result, error)
}

type Recalibrator interface {
	Recalibrate(ctx context.Context) (int, error)
}

// Input is one human-graded reference document
type Input struct {
	FileName        string
	ContentType     string
	Data            []byte
	FinalScore      float64
	TrainingSetName string
	Notes           string
	LineScores      []models.TrainingLineScore
}

// Output identifies what ingestion stored
type Output struct {
	ExampleID        string           `json:"example_id"`
	SubmissionID     string           `json:"submission_id"`
	ParsedLineScores int              `json:"parsed_line_scores"`
	Result           *ensemble.Result `json:"result"`
}

// Ingestor stores gold examples and grades them through the live ensemble
type Ingestor struct {
	store         Store
	extractor     TextExtractor
	embedder      Embedder
	grader        Grader
	recalibrator  Recalibrator
	catalog       *rubric.Catalog
	embedMaxChars int
	logger        *zap.Logger
}

// NewIngestor wires ingestion. embedder and recalibrator may be nil.
func NewIngestor(store Store, extractor TextExtractor, embedder Embedder, grader Grader, recalibrator Recalibrator, catalog *rubric.Catalog, embedMaxChars int, logger *zap.Logger) *Ingestor {
	if embedMaxChars <= 0 {
		embedMaxChars = DefaultEmbedMaxChars
	}
	return &Ingestor{
		store:         store,
		extractor:     extractor,
		embedder:      embedder,
		grader:        grader,
		recalibrator:  recalibrator,
		catalog:       catalog,
		embedMaxChars: embedMaxChars,
		logger:        logger,
	}
}

// Ingest extracts, embeds and grades the document, then persists the example,
// its line scores and the graded training submission, and finally recalibrates.
// Nothing is written when grading fails.
func (i *Ingestor) Ingest(ctx context.Context, in Input) (*Output, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if in.FinalScore < 0 {
		return nil, fmt.Errorf("%w: final score must not be negative", ErrInvalidInput)
	}
	setName := strings.TrimSpace(in.TrainingSetName)
	if setName == "" {
		setName = DefaultSetName
	}

	text, err := i.extractor.Extract(ctx, in.FileName, in.ContentType, in.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	embedding := i.embed(ctx, text)

	res, err := i.grader.Grade(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to grade training example: %w", err)
	}

	ex := &models.TrainingExample{
		ID:              uuid.NewString(),
		TrainingSetName: setName,
		FileName:        in.FileName,
		Text:            text,
		FinalScore:      in.FinalScore,
		Embedding:       embedding,
		CreatedAt:       time.Now().UTC(),
	}
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		ex.Notes = &notes
	}
	if err := i.store.CreateTrainingExample(ctx, ex); err != nil {
		return nil, err
	}

	lines := make([]models.TrainingLineScore, len(in.LineScores))
	for k, ls := range in.LineScores {
		ls.ExampleID = ex.ID
		lines[k] = ls
	}
	if err := i.store.InsertLineScores(ctx, lines); err != nil {
		return nil, err
	}

	sub := &models.Submission{
		ID:                uuid.NewString(),
		FileName:          in.FileName,
		OriginalFilename:  in.FileName,
		TextCharsCount:    utf8.RuneCountInString(text),
		FinalAverageScore: res.AverageScore,
		WeightedTotal:     res.WeightedTotal,
		IsTraining:        true,
		TrainingExampleID: &ex.ID,
		CreatedAt:         ex.CreatedAt,
	}
	grades, scores := ensemble.LedgerRows(res, i.catalog)
	if err := i.store.SaveGradedSubmission(ctx, sub, grades, scores); err != nil {
		return nil, err
	}

	i.logger.Info("Training example ingested",
		zap.String("example_id", ex.ID),
		zap.String("submission_id", sub.ID),
		zap.String("set", setName),
		zap.Int("line_scores", len(lines)),
		zap.Bool("embedded", embedding != nil))

	if i.recalibrator != nil {
		if n, err := i.recalibrator.Recalibrate(ctx); err != nil {
			i.logger.Warn("Auto recalibration failed", zap.Error(err))
		} else {
			i.logger.Info("Auto recalibration finished", zap.Int("rows", n))
		}
	}

	return &Output{
		ExampleID:        ex.ID,
		SubmissionID:     sub.ID,
		ParsedLineScores: len(lines),
		Result:           res,
	}, nil
}

// embed is best-effort; a nil result means no embedding was stored
func (i *Ingestor) embed(ctx context.Context, text string) *string {
	if i.embedder == nil {
		return nil
	}

	vec, err := i.embedder.Embed(ctx, truncateRunes(text, i.embedMaxChars))
	if err != nil {
		i.logger.Warn("Embedding failed, continuing without it", zap.Error(err))
		return nil
	}

	data, err := json.Marshal(vec)
	if err != nil {
		i.logger.Warn("Failed to encode embedding", zap.Error(err))
		return nil
	}
	s := string(data)
	return &s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
