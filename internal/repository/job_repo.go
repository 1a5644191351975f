package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"grading-service/internal/batch"
	"grading-service/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// JobRepository stores batch job snapshots as JSON
type JobRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ batch.Store = (*JobRepository)(nil)

func NewJobRepository(db *sqlx.DB, logger *zap.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

func (r *JobRepository) CreateJob(ctx context.Context, job *models.Job) error {
	snapshot, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	query := r.db.Rebind(`INSERT INTO batch_jobs (id, snapshot, created_at, updated_at) VALUES (?, ?, ?, ?)`)
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query, job.ID, string(snapshot), job.CreatedAt.UTC(), now); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var snapshot string
	query := r.db.Rebind(`SELECT snapshot FROM batch_jobs WHERE id = ?`)
	if err := r.db.GetContext(ctx, &snapshot, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, batch.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return decodeJob(snapshot)
}

func (r *JobRepository) SaveJob(ctx context.Context, job *models.Job) error {
	snapshot, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	query := r.db.Rebind(`UPDATE batch_jobs SET snapshot = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, string(snapshot), time.Now().UTC(), job.ID)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return batch.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	var snapshots []string
	query := r.db.Rebind(`SELECT snapshot FROM batch_jobs ORDER BY created_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &snapshots, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*models.Job, 0, len(snapshots))
	for _, s := range snapshots {
		job, err := decodeJob(s)
		if err != nil {
			r.logger.Warn("Skipping unreadable job snapshot", zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func decodeJob(snapshot string) (*models.Job, error) {
	var job models.Job
	if err := json.Unmarshal([]byte(snapshot), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job snapshot: %w", err)
	}
	return &job, nil
}
