package calibration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"grading-service/internal/metrics"
	"grading-service/internal/models"

	"go.uber.org/zap"
)

// Store is the persistence the engine reads residuals from and writes corrections to
type Store interface {
	ResidualsByModelRubric(ctx context.Context) ([]models.Residual, error)
	UpsertCalibrations(ctx context.Context, rows []models.ModelCalibration) error
	ListCalibrations(ctx context.Context) ([]models.ModelCalibration, error)
}

// Engine turns training residuals into per-(model, rubric item) bias corrections
type Engine struct {
	store   Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.RWMutex
	cache  map[string]map[string]models.ModelCalibration
	loaded bool
	// generation is bumped by Invalidate; a load started under an older
	// generation is not installed
	generation uint64
}

// NewEngine creates a calibration engine over store
func NewEngine(store Store, m *metrics.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		store:   store,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Recalibrate rewrites every calibration row from the current residuals and
// returns how many rows were written. An empty or unreadable residual source
// means there is nothing to update.
func (e *Engine) Recalibrate(ctx context.Context) (int, error) {
	residuals, err := e.store.ResidualsByModelRubric(ctx)
	if err != nil {
		e.logger.Warn("Residual source unavailable, nothing to recalibrate", zap.Error(err))
		return 0, nil
	}

	if len(residuals) == 0 {
		e.logger.Info("No training residuals, calibration unchanged")
		return 0, nil
	}

	now := e.now().UTC()
	rows := make([]models.ModelCalibration, 0, len(residuals))
	for _, r := range residuals {
		rows = append(rows, models.ModelCalibration{
			ModelName: r.ModelName,
			RubricID:  r.RubricID,
			Bias:      -r.AvgResidual,
			Scale:     1,
			UpdatedAt: now,
		})
	}

	if err := e.store.UpsertCalibrations(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to upsert calibrations: %w", err)
	}

	e.Invalidate()
	e.metrics.AddCalibrationRows(len(rows))

	e.logger.Info("Calibration updated", zap.Int("rows", len(rows)))
	return len(rows), nil
}

// Lookup returns the corrections for one model keyed by rubric id
func (e *Engine) Lookup(ctx context.Context, modelID string) (map[string]models.ModelCalibration, error) {
	e.mu.RLock()
	if e.loaded {
		m := e.cache[modelID]
		e.mu.RUnlock()
		return m, nil
	}
	gen := e.generation
	e.mu.RUnlock()

	rows, err := e.store.ListCalibrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load calibrations: %w", err)
	}

	cache := make(map[string]map[string]models.ModelCalibration)
	for _, r := range rows {
		if cache[r.ModelName] == nil {
			cache[r.ModelName] = make(map[string]models.ModelCalibration)
		}
		cache[r.ModelName][r.RubricID] = r
	}

	e.mu.Lock()
	if e.generation == gen {
		e.cache = cache
		e.loaded = true
	}
	e.mu.Unlock()

	return cache[modelID], nil
}

// List returns every stored calibration row
func (e *Engine) List(ctx context.Context) ([]models.ModelCalibration, error) {
	return e.store.ListCalibrations(ctx)
}

// Invalidate drops cached corrections so the next Lookup reloads them
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.cache = nil
	e.loaded = false
	e.generation++
	e.mu.Unlock()
}
