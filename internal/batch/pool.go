package batch

import (
	"context"
	"fmt"
	"sync"

	"grading-service/internal/models"

	"go.uber.org/zap"
)

// Item is one file waiting to be graded
type Item struct {
	Index int
	Name  string
	Path  string
}

// Processor grades one file and returns the stored submission id
type Processor func(ctx context.Context, item Item) (string, error)

// Notifier is told when a job has finished
type Notifier interface {
	JobFinished(ctx context.Context, job *models.Job)
}

// Pool runs batch jobs with a fixed number of workers per job
type Pool struct {
	tracker  *Tracker
	process  Processor
	notifier Notifier
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewPool creates a pool; notifier may be nil
func NewPool(tracker *Tracker, process Processor, notifier Notifier, logger *zap.Logger) *Pool {
	return &Pool{
		tracker:  tracker,
		process:  process,
		notifier: notifier,
		logger:   logger,
	}
}

// Submit starts processing job in the background
func (p *Pool) Submit(job *models.Job, items []Item) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Run(context.Background(), job, items)
	}()
}

// Wait blocks until every submitted job has finished
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Run drains items with job.Parallelism workers and blocks until all are done.
// Dispatched work is never cancelled.
func (p *Pool) Run(ctx context.Context, job *models.Job, items []Item) {
	logger := p.logger.With(zap.String("job_id", job.ID))

	if err := p.tracker.MarkStarted(ctx, job.ID); err != nil {
		logger.Error("Failed to mark job started", zap.Error(err))
	}

	queue := make(chan Item, len(items))
	for _, it := range items {
		queue <- it
	}
	close(queue)

	workers := job.Parallelism
	if workers < 1 {
		workers = DefaultParallelism
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for it := range queue {
				p.runItem(ctx, logger.With(zap.Int("worker", worker)), job.ID, it)
			}
		}(w)
	}
	wg.Wait()

	if err := p.tracker.MarkFinished(ctx, job.ID); err != nil {
		logger.Error("Failed to mark job finished", zap.Error(err))
	}

	final, err := p.tracker.Get(ctx, job.ID)
	if err != nil {
		logger.Error("Failed to read finished job", zap.Error(err))
		return
	}

	logger.Info("Batch job completed",
		zap.Int("total", final.Total),
		zap.Int("completed", final.Completed),
		zap.Int("failed", final.Failed))

	if p.notifier != nil {
		p.notifier.JobFinished(ctx, final)
	}
}

func (p *Pool) runItem(ctx context.Context, logger *zap.Logger, jobID string, it Item) {
	taskID := fmt.Sprintf("%s_%d", jobID, it.Index)

	if err := p.tracker.UpdateTask(ctx, jobID, taskID, models.TaskUpdate{Status: models.TaskRunning}); err != nil {
		logger.Error("Failed to mark task running", zap.String("task_id", taskID), zap.Error(err))
	}

	submissionID, err := p.safeProcess(ctx, it)

	update := models.TaskUpdate{Status: models.TaskDone, SubmissionID: submissionID}
	if err != nil {
		logger.Error("Batch item failed",
			zap.String("task_id", taskID),
			zap.String("file", it.Name),
			zap.Error(err))
		update = models.TaskUpdate{Status: models.TaskFailed, Error: err.Error()}
	}

	if err := p.tracker.UpdateTask(ctx, jobID, taskID, update); err != nil {
		logger.Error("Failed to record task result", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (p *Pool) safeProcess(ctx context.Context, it Item) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while grading %s: %v", it.Name, r)
		}
	}()
	return p.process(ctx, it)
}
