package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"grading-service/internal/batch"
	"grading-service/internal/models"

	"go.uber.org/zap"
)

// BatchAccepted is returned once a batch job is queued
type BatchAccepted struct {
	JobID      string `json:"job_id"`
	Total      int    `json:"total"`
	ETASeconds int    `json:"eta_seconds"`
}

// JobStatus is a job snapshot with a freshly estimated ETA
type JobStatus struct {
	*models.Job
	ETASeconds int `json:"eta_seconds"`
}

// SubmitBatch validates the files, stores them on disk and queues them for grading
func (s *GradingService) SubmitBatch(ctx context.Context, files []Upload) (*BatchAccepted, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", ErrValidation)
	}
	if s.limits.MaxFiles > 0 && len(files) > s.limits.MaxFiles {
		return nil, fmt.Errorf("%w: too many files (%d > %d)", ErrValidation, len(files), s.limits.MaxFiles)
	}

	metas := make([]batch.FileMeta, len(files))
	for i, f := range files {
		if len(f.Data) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrValidation, f.FileName)
		}
		if s.limits.MaxFileBytes > 0 && int64(len(f.Data)) > s.limits.MaxFileBytes {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrValidation, f.FileName, s.limits.MaxFileBytes)
		}
		metas[i] = batch.FileMeta{Name: f.FileName, Size: int64(len(f.Data))}
	}

	job, err := s.tracker.CreateJob(ctx, metas, s.limits.Parallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	items := make([]batch.Item, 0, len(files))
	for i, f := range files {
		path, err := batch.SaveUpload(s.limits.UploadsDir, job.ID, i, f.FileName, f.Data)
		if err != nil {
			s.logger.Error("Failed to store upload", zap.String("job_id", job.ID), zap.String("file", f.FileName), zap.Error(err))
			if uerr := s.tracker.UpdateTask(ctx, job.ID, job.Items[i].ID, models.TaskUpdate{Status: models.TaskFailed, Error: err.Error()}); uerr != nil {
				s.logger.Error("Failed to mark task failed", zap.String("task_id", job.Items[i].ID), zap.Error(uerr))
			}
			continue
		}
		items = append(items, batch.Item{Index: i, Name: f.FileName, Path: path})
	}

	s.pool.Submit(job, items)

	s.logger.Info("Batch job queued",
		zap.String("job_id", job.ID),
		zap.Int("files", len(files)),
		zap.Int("parallelism", job.Parallelism))

	return &BatchAccepted{
		JobID:      job.ID,
		Total:      job.Total,
		ETASeconds: batch.EstimateETASeconds(job.Total, 0, job.Parallelism, s.limits.SecondsPerItem),
	}, nil
}

// processBatchItem grades one stored upload; an unrecorded grade fails the task
func (s *GradingService) processBatchItem(ctx context.Context, it batch.Item) (string, error) {
	data, err := os.ReadFile(it.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	resp, err := s.Grade(ctx, Upload{FileName: it.Name, Data: data}, "")
	if err != nil {
		return "", err
	}
	if resp.SubmissionID == "" {
		return "", fmt.Errorf("graded %s but could not record it", it.Name)
	}
	return resp.SubmissionID, nil
}

// JobStatus returns a job with its remaining-time estimate
func (s *GradingService) JobStatus(ctx context.Context, id string) (*JobStatus, error) {
	job, err := s.tracker.Get(ctx, id)
	if err != nil {
		if errors.Is(err, batch.ErrJobNotFound) {
			return nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
		}
		return nil, err
	}
	return s.status(job), nil
}

// ListJobs returns recent jobs newest first
func (s *GradingService) ListJobs(ctx context.Context) ([]*JobStatus, error) {
	jobs, err := s.tracker.List(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	out := make([]*JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, s.status(j))
	}
	return out, nil
}

// status estimates the remaining time from tasks not yet Done or Failed
func (s *GradingService) status(job *models.Job) *JobStatus {
	return &JobStatus{
		Job:        job,
		ETASeconds: batch.EstimateETASeconds(job.Total, job.Completed+job.Failed, job.Parallelism, s.limits.SecondsPerItem),
	}
}
