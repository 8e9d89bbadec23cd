package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/models"
)

const jobColumns = `id, user_id, kind, model, prompt, reference_inputs, parameters, status,
	credits_reserved, external_task_id, result_urls, error_message, attempts, post_id,
	created_at, updated_at, completed_at`

// SQLiteJobRepository implements JobRepository for SQLite/libsql.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository creates a new job repository.
func NewSQLiteJobRepository(db *sql.DB) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

// Create inserts a new job.
func (r *SQLiteJobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}

	params := "{}"
	if len(job.Parameters) > 0 {
		params = string(job.Parameters)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO generation_jobs (id, user_id, kind, model, prompt, reference_inputs, parameters, status,
			credits_reserved, external_task_id, result_urls, error_message, attempts, post_id,
			created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID, job.UserID, job.Kind, job.Model, job.Prompt, encodeList(job.ReferenceInputs), params, job.Status,
		job.CreditsReserved, nullString(job.ExternalTaskID), encodeList(job.ResultURLs), nullString(job.ErrorMessage),
		job.Attempts, nullString(job.PostID),
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt), nullTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetByID returns the job, or nil if it does not exist.
func (r *SQLiteJobRepository) GetByID(ctx context.Context, id string) (*models.GenerationJob, error) {
	return getJob(ctx, r.db, id)
}

func getJob(ctx context.Context, q dbtx, id string) (*models.GenerationJob, error) {
	job, err := scanJob(q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListByUser returns a user's jobs, newest first.
func (r *SQLiteJobRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.GenerationJob, error) {
	limit, offset = clampPage(limit, offset)
	return r.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM generation_jobs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
}

// ListByPost returns every job attached to a post in creation order.
func (r *SQLiteJobRepository) ListByPost(ctx context.Context, postID string) ([]*models.GenerationJob, error) {
	return r.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM generation_jobs
		WHERE post_id = ?
		ORDER BY created_at ASC, id ASC
	`, postID)
}

// MarkProcessing claims a pending job for dispatch.
func (r *SQLiteJobRepository) MarkProcessing(ctx context.Context, id string) (*models.GenerationJob, error) {
	now := formatTime(time.Now())
	job, err := scanJob(r.db.QueryRowContext(ctx, `
		UPDATE generation_jobs
		SET status = 'processing', attempts = attempts + 1, updated_at = ?
		WHERE id = ? AND status = 'pending'
		RETURNING `+jobColumns, now, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark job processing: %w", err)
	}
	return job, nil
}

// SetExternalTaskID records the provider's task id. It is a no-op once the
// job is terminal.
func (r *SQLiteJobRepository) SetExternalTaskID(ctx context.Context, id, taskID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE generation_jobs
		SET external_task_id = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'
	`, taskID, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to set external task id: %w", err)
	}
	return nil
}

// Finalize is the only path to a terminal state. The conditional update makes
// the first terminal write win; a failed job's reservation is refunded inside
// the same transaction so it happens at most once.
func (r *SQLiteJobRepository) Finalize(ctx context.Context, id string, params FinalizeParams) (*models.GenerationJob, bool, error) {
	if !params.Status.IsTerminal() {
		return nil, false, fmt.Errorf("finalize requires a terminal status, got %q", params.Status)
	}
	if params.CompletedAt.IsZero() {
		params.CompletedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	completedAt := formatTime(params.CompletedAt)
	job, err := scanJob(tx.QueryRowContext(ctx, `
		UPDATE generation_jobs
		SET status = ?, result_urls = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('completed', 'failed')
		RETURNING `+jobColumns,
		params.Status, encodeList(params.ResultURLs), nullString(params.ErrorMessage), completedAt, completedAt, id))
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := getJob(ctx, tx, id)
		if getErr != nil {
			return nil, false, getErr
		}
		if existing == nil {
			return nil, false, ErrJobNotFound
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to finalize job: %w", err)
	}

	if job.Status == models.JobStatusFailed && job.CreditsReserved > 0 {
		if _, err := creditUser(ctx, tx, job.UserID, job.CreditsReserved, models.TxTypeRefund, job.ID, "",
			"refund for failed "+string(job.Kind)+" job"); err != nil {
			return nil, false, fmt.Errorf("failed to refund job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return job, true, nil
}

// TouchPolled bumps updated_at on a processing job after a poll that did not
// finish it.
func (r *SQLiteJobRepository) TouchPolled(ctx context.Context, id string, polledAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE generation_jobs
		SET updated_at = ?
		WHERE id = ? AND status = 'processing'
	`, formatTime(polledAt), id)
	if err != nil {
		return fmt.Errorf("failed to touch polled job: %w", err)
	}
	return nil
}

// ListProcessingBefore returns processing jobs awaiting a callback, least
// recently touched first.
func (r *SQLiteJobRepository) ListProcessingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.GenerationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM generation_jobs
		WHERE status = 'processing' AND external_task_id IS NOT NULL AND updated_at < ?
		ORDER BY updated_at ASC, id ASC
		LIMIT ?
	`, formatTime(cutoff), limit)
}

// ListActiveCreatedBefore returns non-terminal jobs older than cutoff.
func (r *SQLiteJobRepository) ListActiveCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.GenerationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM generation_jobs
		WHERE status IN ('pending', 'processing') AND created_at < ?
		ORDER BY created_at ASC
		LIMIT ?
	`, formatTime(cutoff), limit)
}

func (r *SQLiteJobRepository) queryJobs(ctx context.Context, query string, args ...any) ([]*models.GenerationJob, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(s scanner) (*models.GenerationJob, error) {
	var job models.GenerationJob
	var kind, status, refs, params, results, createdAt, updatedAt string
	var externalTaskID, errorMessage, postID, completedAt sql.NullString

	err := s.Scan(
		&job.ID, &job.UserID, &kind, &job.Model, &job.Prompt, &refs, &params, &status,
		&job.CreditsReserved, &externalTaskID, &results, &errorMessage, &job.Attempts, &postID,
		&createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Kind = models.JobKind(kind)
	job.Status = models.JobStatus(status)
	job.ReferenceInputs = decodeList(refs)
	if params != "" && params != "{}" {
		job.Parameters = json.RawMessage(params)
	}
	job.ResultURLs = decodeList(results)
	job.ExternalTaskID = externalTaskID.String
	job.ErrorMessage = errorMessage.String
	job.PostID = postID.String
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	job.CompletedAt = parseNullTime(completedAt)

	return &job, nil
}
