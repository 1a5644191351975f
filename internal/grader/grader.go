package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"grading-service/internal/llm"
	"grading-service/internal/metrics"
	"grading-service/internal/models"
	"grading-service/internal/prompt"
	"grading-service/internal/rubric"

	"go.uber.org/zap"
)

const (
	// DefaultTemperature keeps run-to-run variance low
	DefaultTemperature float32 = 0.2
	defaultTimeout             = 120 * time.Second
	defaultMaxTokens           = 4096
)

// Config tunes one roster model
type Config struct {
	ModelID string
	// Temperature is the sampling temperature; nil means DefaultTemperature
	Temperature *float32
	MaxTokens   int
	Retry       llm.RetryPolicy
}

// ModelGrader grades a submission with one model. It never returns an error:
// every problem is reported as a failed GradeOutcome.
type ModelGrader struct {
	cfg         Config
	temperature float32
	provider    llm.Provider
	catalog     *rubric.Catalog
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// New creates a grader for provider
func New(cfg Config, provider llm.Provider, catalog *rubric.Catalog, m *metrics.Metrics, logger *zap.Logger) *ModelGrader {
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Retry.Timeout == 0 {
		cfg.Retry.Timeout = defaultTimeout
	}

	return &ModelGrader{
		cfg:         cfg,
		temperature: temperature,
		provider:    provider,
		catalog:     catalog,
		metrics:     m,
		logger:      logger.With(zap.String("model", cfg.ModelID)),
	}
}

// ModelID returns the identifier recorded with this grader's outcomes
func (g *ModelGrader) ModelID() string {
	return g.cfg.ModelID
}

// Grade sends text to the model and validates the answer
func (g *ModelGrader) Grade(ctx context.Context, p prompt.Prompt, text string) (out models.GradeOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Model grader panicked", zap.Any("panic", r))
			out = models.Failure(g.cfg.ModelID, fmt.Sprintf("internal error: %v", r))
		}
		g.metrics.ObserveModelCall(g.cfg.ModelID, out.Succeeded(), time.Since(start))
	}()

	raw, err := llm.Call(ctx, g.provider, models.ChatRequest{
		System:      p.System,
		User:        prompt.UserMessage(text),
		Temperature: g.temperature,
		JSONMode:    true,
		MaxTokens:   g.cfg.MaxTokens,
	}, g.cfg.Retry, g.logger)
	if err != nil {
		g.logger.Error("Model call failed", zap.Error(err))
		return models.Failure(g.cfg.ModelID, err.Error())
	}

	resp, err := llm.ParseGradeResponse(raw, g.catalog, p.Excluded)
	if err != nil {
		g.logger.Error("Invalid model response",
			zap.Error(err),
			zap.Int("response_len", len(raw)))
		return models.Failure(g.cfg.ModelID, err.Error())
	}

	scores := make(map[string]models.ItemScore, len(resp.Scores))
	for _, s := range resp.Scores {
		scores[s.ID] = models.ItemScore{Score: s.Score, Adjusted: s.Score, Justification: s.Justification}
	}

	outcome := models.GradeOutcome{
		ModelID:          g.cfg.ModelID,
		TotalScore:       resp.TotalScore,
		OverallFeedback:  resp.OverallFeedback,
		Scores:           scores,
		DiscussionPoints: resp.DiscussionPoints,
		ApplicantName:    resp.ApplicantName,
	}
	if body := llm.StripCodeFences(raw); json.Valid([]byte(body)) {
		outcome.RawResponse = json.RawMessage(body)
	}

	g.logger.Debug("Model graded submission",
		zap.Float64("total_score", resp.TotalScore),
		zap.Int("items", len(scores)),
		zap.Duration("took", time.Since(start)))

	return outcome
}
