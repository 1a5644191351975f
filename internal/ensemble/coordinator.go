package ensemble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"grading-service/internal/metrics"
	"grading-service/internal/models"
	"grading-service/internal/prompt"
	"grading-service/internal/rubric"

	"go.uber.org/zap"
)

// ErrAllModelsFailed is matched by errors.Is on an *AllFailedError
var ErrAllModelsFailed = errors.New("all models failed")

// AllFailedError lists every model's failure when no model produced a grade
type AllFailedError struct {
	Failures []models.GradeOutcome
}

func (e *AllFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.ModelID, f.Error))
	}
	return fmt.Sprintf("%s: %s", ErrAllModelsFailed, strings.Join(parts, "; "))
}

func (e *AllFailedError) Is(target error) bool {
	return target == ErrAllModelsFailed
}

// Grader is one roster model
type Grader interface {
	ModelID() string
	Grade(ctx context.Context, p prompt.Prompt, text string) models.GradeOutcome
}

// CalibrationSource provides stored corrections keyed by rubric id
type CalibrationSource interface {
	Lookup(ctx context.Context, modelID string) (map[string]models.ModelCalibration, error)
}

// Options configures a Coordinator
type Options struct {
	// Excluded rubric items are never sent to models for scoring
	Excluded            []string
	ApplyCalibration    bool
	MaxDiscussionPoints int
}

// Coordinator fans one submission out to every grader and aggregates the outcomes
type Coordinator struct {
	graders     []Grader
	catalog     *rubric.Catalog
	prompt      prompt.Prompt
	calibration CalibrationSource
	opts        Options
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewCoordinator builds the prompt once for the catalog and exclusions
func NewCoordinator(graders []Grader, catalog *rubric.Catalog, calibration CalibrationSource, opts Options, m *metrics.Metrics, logger *zap.Logger) *Coordinator {
	if opts.MaxDiscussionPoints <= 0 {
		opts.MaxDiscussionPoints = prompt.DiscussionPointsCount
	}

	return &Coordinator{
		graders:     graders,
		catalog:     catalog,
		prompt:      prompt.Build(catalog, opts.Excluded...),
		calibration: calibration,
		opts:        opts,
		metrics:     m,
		logger:      logger,
	}
}

// Models returns the roster ids in order
func (c *Coordinator) Models() []string {
	ids := make([]string, len(c.graders))
	for i, g := range c.graders {
		ids[i] = g.ModelID()
	}
	return ids
}

// Grade runs every grader concurrently and waits for all of them.
// It fails only when no grader succeeds.
func (c *Coordinator) Grade(ctx context.Context, text string) (*Result, error) {
	start := time.Now()

	outcomes := make([]models.GradeOutcome, len(c.graders))
	var wg sync.WaitGroup
	for i, g := range c.graders {
		wg.Add(1)
		go func(i int, g Grader) {
			defer wg.Done()
			outcomes[i] = g.Grade(ctx, c.prompt, text)
		}(i, g)
	}
	wg.Wait()

	var failures []models.GradeOutcome
	for i := range outcomes {
		if !outcomes[i].Succeeded() {
			failures = append(failures, outcomes[i])
			continue
		}
		if c.opts.ApplyCalibration && c.calibration != nil {
			c.applyCalibration(ctx, &outcomes[i])
		}
	}

	if len(failures) == len(outcomes) {
		c.metrics.ObserveGrading(false, time.Since(start))
		c.logger.Error("All models failed", zap.Int("models", len(outcomes)))
		return nil, &AllFailedError{Failures: failures}
	}

	res := Aggregate(outcomes, c.catalog, c.opts.MaxDiscussionPoints)
	c.metrics.ObserveGrading(true, time.Since(start))

	c.logger.Info("Submission graded",
		zap.Int("succeeded", len(outcomes)-len(failures)),
		zap.Int("failed", len(failures)),
		zap.Float64("average_score", res.AverageScore),
		zap.Float64("weighted_total", res.WeightedTotal),
		zap.Duration("took", time.Since(start)))

	return res, nil
}

func (c *Coordinator) applyCalibration(ctx context.Context, o *models.GradeOutcome) {
	cal, err := c.calibration.Lookup(ctx, o.ModelID)
	if err != nil {
		c.logger.Warn("Calibration lookup failed, using raw scores",
			zap.String("model", o.ModelID), zap.Error(err))
		return
	}
	if len(cal) == 0 {
		return
	}

	adjusted := make(map[string]models.ItemScore, len(o.Scores))
	for id, s := range o.Scores {
		if k, ok := cal[id]; ok {
			s.Adjusted = k.Apply(s.Score, c.catalog.PointsPossible(id))
		}
		adjusted[id] = s
	}
	o.Scores = adjusted
}
