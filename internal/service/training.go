package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"grading-service/internal/extract"
	"grading-service/internal/models"
	"grading-service/internal/training"
)

// TrainingRequest is a gold example upload. Line scores come either from a
// spreadsheet or from inline JSON; both are optional.
type TrainingRequest struct {
	Document        Upload
	FinalScore      float64
	TrainingSetName string
	Notes           string
	LineScoresFile  *Upload
	LineScoresJSON  string
}

// IngestTraining parses line scores and hands the example to the ingestor
func (s *GradingService) IngestTraining(ctx context.Context, req TrainingRequest) (*training.Output, error) {
	var lines []models.TrainingLineScore

	if req.LineScoresFile != nil && len(req.LineScoresFile.Data) > 0 {
		parsed, err := training.ParseLineScoreFile(req.LineScoresFile.FileName, req.LineScoresFile.Data, s.catalog)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		lines = append(lines, parsed...)
	}

	if js := strings.TrimSpace(req.LineScoresJSON); js != "" {
		parsed, err := training.ParseJSON([]byte(js), s.catalog)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		lines = append(lines, parsed...)
	}

	out, err := s.ingestor.Ingest(ctx, training.Input{
		FileName:        req.Document.FileName,
		ContentType:     req.Document.ContentType,
		Data:            req.Document.Data,
		FinalScore:      req.FinalScore,
		TrainingSetName: req.TrainingSetName,
		Notes:           req.Notes,
		LineScores:      lines,
	})
	if err != nil {
		switch {
		case errors.Is(err, training.ErrInvalidInput),
			errors.Is(err, extract.ErrUnsupportedType),
			errors.Is(err, extract.ErrEmptyText):
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, err
	}
	return out, nil
}

// Recalibrate recomputes every calibration row from training residuals
func (s *GradingService) Recalibrate(ctx context.Context) (int, error) {
	return s.calibration.Recalibrate(ctx)
}

// Calibrations lists the stored corrections
func (s *GradingService) Calibrations(ctx context.Context) ([]models.ModelCalibration, error) {
	return s.calibration.List(ctx)
}
