package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
)

// ExportJobRepository persists background export job metadata.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs an ExportJobRepository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a queued job.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	const query = `INSERT INTO export_jobs (id, type, params, status, result_url, created_by, created_at, finished_at, error_message)
        VALUES (:id, :type, :params, :status, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindByID fetches a job by ID.
func (r *ExportJobRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	var job models.ExportJob
	const query = `SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message
        FROM export_jobs WHERE id = $1`
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatus transitions a job's lifecycle state.
func (r *ExportJobRepository) UpdateStatus(ctx context.Context, id string, status models.ExportStatus) error {
	const query = `UPDATE export_jobs SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update export job status: %w", err)
	}
	return nil
}

// MarkFinished records a successful completion with its download URL.
func (r *ExportJobRepository) MarkFinished(ctx context.Context, id, resultURL string) error {
	const query = `UPDATE export_jobs SET status = $2, result_url = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFinished, resultURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("finish export job: %w", err)
	}
	return nil
}

// MarkFailed records a permanent failure.
func (r *ExportJobRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `UPDATE export_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFailed, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("fail export job: %w", err)
	}
	return nil
}

// ListByUser returns a user's jobs, newest first.
func (r *ExportJobRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.ExportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var jobs []models.ExportJob
	query := fmt.Sprintf(`SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message
        FROM export_jobs WHERE created_by = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	if err := r.db.SelectContext(ctx, &jobs, query, userID); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}
