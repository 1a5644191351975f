package batch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"grading-service/internal/metrics"
	"grading-service/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileMeta describes one uploaded file
type FileMeta struct {
	Name string
	Size int64
}

// Tracker owns job state. All mutations go through one lock, which makes it
// the single writer for every snapshot; the store is written after each change
// and the in-memory map is only a read-through cache.
type Tracker struct {
	store   Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
	// started separates jobs owned by this process from ones left behind by
	// an earlier run
	started time.Time

	mu    sync.Mutex
	cache map[string]*models.Job
}

// NewTracker creates a tracker over store
func NewTracker(store Store, m *metrics.Metrics, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:   store,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		started: time.Now().UTC(),
		cache:   make(map[string]*models.Job),
	}
}

// InterruptedError is recorded on tasks that were still pending when an
// earlier process stopped
const InterruptedError = "interrupted: server stopped before the task finished"

// RecoverInterrupted fails the pending tasks of every unfinished job created
// before this tracker started and returns how many jobs it closed.
func (t *Tracker) RecoverInterrupted(ctx context.Context, limit int) (int, error) {
	jobs, err := t.store.ListJobs(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	closed := 0
	for _, job := range jobs {
		if _, ok := t.cache[job.ID]; ok || !t.interrupted(job) {
			continue
		}
		t.cache[job.ID] = t.failPending(ctx, job)
		closed++
	}
	return closed, nil
}

func (t *Tracker) interrupted(job *models.Job) bool {
	return job.FinishedAt == nil && job.CreatedAt.Before(t.started)
}

// failPending must be called with t.mu held
func (t *Tracker) failPending(ctx context.Context, job *models.Job) *models.Job {
	next := job.Clone()
	for i := range next.Items {
		task := &next.Items[i]
		if task.Status.Terminal() {
			continue
		}
		task.Status = models.TaskFailed
		task.Error = InterruptedError
		next.Failed++
		t.metrics.IncBatchTask(string(models.TaskFailed))
	}
	now := t.now().UTC()
	next.FinishedAt = &now

	if err := t.store.SaveJob(ctx, next); err != nil {
		t.logger.Error("Failed to persist interrupted job", zap.String("job_id", job.ID), zap.Error(err))
	}
	t.logger.Warn("Closed batch job left unfinished by an earlier run",
		zap.String("job_id", job.ID),
		zap.Int("failed", next.Failed))
	return next
}

// NewJobID returns an id of the form batch_<random>_<base36 millis>
func NewJobID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("batch_%s_%s", random, strconv.FormatInt(now.UnixMilli(), 36))
}

// CreateJob registers a job with one queued task per file
func (t *Tracker) CreateJob(ctx context.Context, files []FileMeta, parallelism int) (*models.Job, error) {
	if parallelism < 1 {
		parallelism = DefaultParallelism
	}

	now := t.now().UTC()
	job := &models.Job{
		ID:          NewJobID(now),
		Total:       len(files),
		Parallelism: parallelism,
		CreatedAt:   now,
		Items:       make([]models.Task, len(files)),
	}
	for i, f := range files {
		job.Items[i] = models.Task{
			ID:       fmt.Sprintf("%s_%d", job.ID, i),
			FileName: f.Name,
			Size:     f.Size,
			Status:   models.TaskQueued,
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	t.cache[job.ID] = job

	t.logger.Info("Batch job created", zap.String("job_id", job.ID), zap.Int("total", job.Total))
	return job.Clone(), nil
}

// Get returns a snapshot, loading it from the store on a cache miss
func (t *Tracker) Get(ctx context.Context, id string) (*models.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// List returns the most recent jobs from the store
func (t *Tracker) List(ctx context.Context, limit int) ([]*models.Job, error) {
	return t.store.ListJobs(ctx, limit)
}

// UpdateTask applies u to one task and persists the snapshot. Counters move
// only on the first transition into Done or Failed.
func (t *Tracker) UpdateTask(ctx context.Context, jobID, taskID string, u models.TaskUpdate) error {
	return t.mutate(ctx, jobID, func(job *models.Job) error {
		idx := -1
		for i := range job.Items {
			if job.Items[i].ID == taskID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("task %s not found in job %s", taskID, jobID)
		}

		task := &job.Items[idx]
		prev := task.Status

		if u.Status != "" {
			task.Status = u.Status
		}
		if u.Error != "" {
			task.Error = u.Error
		}
		if u.SubmissionID != "" {
			task.SubmissionID = u.SubmissionID
		}

		if !prev.Terminal() {
			switch task.Status {
			case models.TaskDone:
				job.Completed++
			case models.TaskFailed:
				job.Failed++
			}
		}

		if u.Status != "" && u.Status != prev {
			t.metrics.IncBatchTask(string(u.Status))
		}
		return nil
	})
}

// MarkStarted stamps the job start time
func (t *Tracker) MarkStarted(ctx context.Context, jobID string) error {
	return t.mutate(ctx, jobID, func(job *models.Job) error {
		now := t.now().UTC()
		job.StartedAt = &now
		return nil
	})
}

// MarkFinished stamps the job end time
func (t *Tracker) MarkFinished(ctx context.Context, jobID string) error {
	return t.mutate(ctx, jobID, func(job *models.Job) error {
		now := t.now().UTC()
		job.FinishedAt = &now
		return nil
	})
}

func (t *Tracker) mutate(ctx context.Context, jobID string, fn func(*models.Job) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cached, err := t.load(ctx, jobID)
	if err != nil {
		return err
	}

	next := cached.Clone()
	if err := fn(next); err != nil {
		return err
	}

	if err := t.store.SaveJob(ctx, next); err != nil {
		t.logger.Error("Failed to persist job snapshot", zap.String("job_id", jobID), zap.Error(err))
		return fmt.Errorf("failed to save job: %w", err)
	}
	t.cache[jobID] = next
	return nil
}

// load must be called with t.mu held
func (t *Tracker) load(ctx context.Context, id string) (*models.Job, error) {
	if job, ok := t.cache[id]; ok {
		return job, nil
	}

	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.interrupted(job) {
		job = t.failPending(ctx, job)
	}
	t.cache[id] = job
	return job, nil
}
