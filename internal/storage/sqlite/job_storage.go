package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// JobStorage implements SQLite storage for crawl jobs
type JobStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewJobStorage creates a new job storage instance
func NewJobStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

const jobColumns = `id, category_id, status, priority, retry_count, job_type, external_task_id,
	start_date, end_date, max_results, created_at, started_at, completed_at,
	error_message, correlation_id, metadata, articles_found, articles_saved`

// CreateJob inserts a new job row
func (s *JobStorage) CreateJob(ctx context.Context, job *models.CrawlJob) error {
	metadataJSON, err := job.MetadataJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	query := `
		INSERT INTO crawl_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.db.ExecContext(ctx, query,
		job.ID,
		job.CategoryID,
		string(job.Status),
		job.Priority,
		job.RetryCount,
		string(job.JobType),
		nullableString(job.ExternalTaskID),
		nullableUnix(job.StartDate),
		nullableUnix(job.EndDate),
		nullableIntPtr(job.MaxResults),
		job.CreatedAt.Unix(),
		nullableUnix(job.StartedAt),
		nullableUnix(job.CompletedAt),
		nullableString(job.ErrorMessage),
		nullableString(job.CorrelationID),
		nullableString(metadataJSON),
		job.ArticlesFound,
		job.ArticlesSaved,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return common.Errorf(common.KindDuplicate, "job with external task id %q already exists", job.ExternalTaskID)
		}
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to create job")
		return common.WrapError(common.KindDatabase, "failed to create job", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("category_id", job.CategoryID).
		Str("job_type", string(job.JobType)).
		Msg("Job created")
	return nil
}

// GetJob retrieves a job by ID
func (s *JobStorage) GetJob(ctx context.Context, id string) (*models.CrawlJob, error) {
	query := `SELECT ` + jobColumns + ` FROM crawl_jobs WHERE id = ?`
	row := s.db.db.QueryRowContext(ctx, query, id)
	job, err := s.scanJob(row)
	if err == sql.ErrNoRows {
		return nil, common.Errorf(common.KindNotFound, "job %s not found", id)
	}
	return job, err
}

// ListJobs lists jobs with filters, newest first
func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.CrawlJob, error) {
	query := `SELECT ` + jobColumns + ` FROM crawl_jobs WHERE 1=1`
	args := []interface{}{}

	if opts != nil {
		if opts.Status != "" {
			query += " AND status = ?"
			args = append(args, string(opts.Status))
		}
		if opts.CategoryID != "" {
			query += " AND category_id = ?"
			args = append(args, opts.CategoryID)
		}
		if opts.JobType != "" {
			query += " AND job_type = ?"
			args = append(args, string(opts.JobType))
		}
	}
	query += " ORDER BY created_at DESC"
	if opts != nil && opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to list jobs", err)
	}
	defer rows.Close()

	var jobs []*models.CrawlJob
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJob updates all mutable fields of a job
func (s *JobStorage) UpdateJob(ctx context.Context, job *models.CrawlJob) error {
	metadataJSON, err := job.MetadataJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	query := `
		UPDATE crawl_jobs SET
			status = ?, priority = ?, retry_count = ?, external_task_id = ?,
			start_date = ?, end_date = ?, max_results = ?,
			started_at = ?, completed_at = ?, error_message = ?, metadata = ?,
			articles_found = ?, articles_saved = ?
		WHERE id = ?
	`

	result, err := s.db.db.ExecContext(ctx, query,
		string(job.Status),
		job.Priority,
		job.RetryCount,
		nullableString(job.ExternalTaskID),
		nullableUnix(job.StartDate),
		nullableUnix(job.EndDate),
		nullableIntPtr(job.MaxResults),
		nullableUnix(job.StartedAt),
		nullableUnix(job.CompletedAt),
		nullableString(job.ErrorMessage),
		nullableString(metadataJSON),
		job.ArticlesFound,
		job.ArticlesSaved,
		job.ID,
	)
	if err != nil {
		return common.WrapError(common.KindDatabase, "failed to update job", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return common.Errorf(common.KindNotFound, "job %s not found", job.ID)
	}
	return nil
}

// DeleteJob removes a job row
func (s *JobStorage) DeleteJob(ctx context.Context, id string) error {
	result, err := s.db.db.ExecContext(ctx, `DELETE FROM crawl_jobs WHERE id = ?`, id)
	if err != nil {
		return common.WrapError(common.KindDatabase, "failed to delete job", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return common.Errorf(common.KindNotFound, "job %s not found", id)
	}
	return nil
}

// CountJobs counts jobs, optionally by status
func (s *JobStorage) CountJobs(ctx context.Context, status models.JobStatus) (int, error) {
	query := `SELECT COUNT(*) FROM crawl_jobs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	var count int
	if err := s.db.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, common.WrapError(common.KindDatabase, "failed to count jobs", err)
	}
	return count, nil
}

// GetJobStats aggregates job counts by status
func (s *JobStorage) GetJobStats(ctx context.Context) (*models.JobStats, error) {
	query := `
		SELECT
			COUNT(*),
			SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END)
		FROM crawl_jobs
	`
	var stats models.JobStats
	var pending, running, completed, failed sql.NullInt64
	err := s.db.db.QueryRowContext(ctx, query).Scan(&stats.Total, &pending, &running, &completed, &failed)
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to get job stats", err)
	}
	stats.Pending = int(pending.Int64)
	stats.Running = int(running.Int64)
	stats.Completed = int(completed.Int64)
	stats.Failed = int(failed.Int64)
	return &stats, nil
}

// HasActiveJobForCategory reports whether a pending or running job exists for
// the category. Used to suppress duplicate scheduled jobs.
func (s *JobStorage) HasActiveJobForCategory(ctx context.Context, categoryID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM crawl_jobs
			WHERE category_id = ? AND status IN ('pending', 'running')
		)
	`
	var exists int
	if err := s.db.db.QueryRowContext(ctx, query, categoryID).Scan(&exists); err != nil {
		return false, common.WrapError(common.KindDatabase, "failed to check active jobs", err)
	}
	return exists != 0, nil
}

// GetPendingJobs returns pending jobs ordered by priority (high first) then
// creation time (old first).
func (s *JobStorage) GetPendingJobs(ctx context.Context, limit int) ([]*models.CrawlJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM crawl_jobs
		WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC
	`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to query pending jobs", err)
	}
	defer rows.Close()

	var jobs []*models.CrawlJob
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkJobRunning transitions a pending job to running. The status guard in
// the WHERE clause makes concurrent claims race-safe: only one dispatcher
// slot wins the row.
func (s *JobStorage) MarkJobRunning(ctx context.Context, id, externalTaskID string, startedAt time.Time) error {
	query := `
		UPDATE crawl_jobs
		SET status = 'running', external_task_id = ?, started_at = ?
		WHERE id = ? AND status = 'pending'
	`
	result, err := s.db.db.ExecContext(ctx, query, nullableString(externalTaskID), startedAt.Unix(), id)
	if err != nil {
		return common.WrapError(common.KindDatabase, "failed to mark job running", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return common.Errorf(common.KindStateViolation, "job %s is not pending", id)
	}
	return nil
}

// MarkJobCompleted transitions a running job to completed with result counts
func (s *JobStorage) MarkJobCompleted(ctx context.Context, id string, completedAt time.Time, found, saved int) error {
	query := `
		UPDATE crawl_jobs
		SET status = 'completed', completed_at = ?, articles_found = ?, articles_saved = ?, error_message = NULL
		WHERE id = ? AND status = 'running'
	`
	result, err := s.db.db.ExecContext(ctx, query, completedAt.Unix(), found, saved, id)
	if err != nil {
		return common.WrapError(common.KindDatabase, "failed to mark job completed", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return common.Errorf(common.KindStateViolation, "job %s is not running", id)
	}
	return nil
}

// MarkJobFailed transitions a running job to failed with the error message
func (s *JobStorage) MarkJobFailed(ctx context.Context, id string, completedAt time.Time, errorMessage string) error {
	query := `
		UPDATE crawl_jobs
		SET status = 'failed', completed_at = ?, error_message = ?
		WHERE id = ? AND status IN ('pending', 'running')
	`
	result, err := s.db.db.ExecContext(ctx, query, completedAt.Unix(), errorMessage, id)
	if err != nil {
		return common.WrapError(common.KindDatabase, "failed to mark job failed", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return common.Errorf(common.KindStateViolation, "job %s is not active", id)
	}
	return nil
}

// RequeueJob returns a running job to pending for a retry, incrementing the
// retry count and clearing run state.
func (s *JobStorage) RequeueJob(ctx context.Context, id string, errorMessage string) error {
	query := `
		UPDATE crawl_jobs
		SET status = 'pending', retry_count = retry_count + 1,
		    external_task_id = NULL, started_at = NULL, error_message = ?
		WHERE id = ? AND status = 'running' AND retry_count < ?
	`
	result, err := s.db.db.ExecContext(ctx, query, errorMessage, id, models.MaxRetryCount)
	if err != nil {
		return common.WrapError(common.KindDatabase, "failed to requeue job", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return common.Errorf(common.KindStateViolation, "job %s cannot be requeued", id)
	}
	return nil
}

// FindStuckJobs returns running jobs that started before the threshold
func (s *JobStorage) FindStuckJobs(ctx context.Context, olderThan time.Time) ([]*models.CrawlJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM crawl_jobs
		WHERE status = 'running' AND started_at IS NOT NULL AND started_at < ?
		ORDER BY started_at ASC
	`
	rows, err := s.db.db.QueryContext(ctx, query, olderThan.Unix())
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to query stuck jobs", err)
	}
	defer rows.Close()

	var jobs []*models.CrawlJob
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ResetStuckJob fails a stuck running job, counting the lost run as a retry
func (s *JobStorage) ResetStuckJob(ctx context.Context, id string) error {
	query := `
		UPDATE crawl_jobs
		SET status = 'failed', completed_at = ?,
		    retry_count = MIN(retry_count + 1, ?),
		    external_task_id = NULL,
		    error_message = 'exceeded stuck-job threshold'
		WHERE id = ? AND status = 'running'
	`
	result, err := s.db.db.ExecContext(ctx, query, time.Now().UTC().Unix(), models.MaxRetryCount, id)
	if err != nil {
		return common.WrapError(common.KindDatabase, "failed to reset stuck job", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return common.Errorf(common.KindStateViolation, "job %s is not running", id)
	}
	s.logger.Warn().Str("job_id", id).Msg("Stuck job failed")
	return nil
}

// CleanupOldJobs deletes terminal jobs created before the threshold
func (s *JobStorage) CleanupOldJobs(ctx context.Context, olderThan time.Time) (int, error) {
	query := `
		DELETE FROM crawl_jobs
		WHERE status IN ('completed', 'failed')
		  AND created_at < ?
	`
	result, err := s.db.db.ExecContext(ctx, query, olderThan.Unix())
	if err != nil {
		return 0, common.WrapError(common.KindDatabase, "failed to cleanup old jobs", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

func (s *JobStorage) scanJob(row rowScanner) (*models.CrawlJob, error) {
	var (
		job            models.CrawlJob
		status         string
		jobType        string
		externalTaskID sql.NullString
		startDate      sql.NullInt64
		endDate        sql.NullInt64
		maxResults     sql.NullInt64
		createdAt      int64
		startedAt      sql.NullInt64
		completedAt    sql.NullInt64
		errorMessage   sql.NullString
		correlationID  sql.NullString
		metadata       sql.NullString
	)

	err := row.Scan(
		&job.ID,
		&job.CategoryID,
		&status,
		&job.Priority,
		&job.RetryCount,
		&jobType,
		&externalTaskID,
		&startDate,
		&endDate,
		&maxResults,
		&createdAt,
		&startedAt,
		&completedAt,
		&errorMessage,
		&correlationID,
		&metadata,
		&job.ArticlesFound,
		&job.ArticlesSaved,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to scan job", err)
	}

	job.Status = models.JobStatus(status)
	job.JobType = models.JobType(jobType)
	job.ExternalTaskID = externalTaskID.String
	if startDate.Valid {
		job.StartDate = unixToTime(startDate.Int64)
	}
	if endDate.Valid {
		job.EndDate = unixToTime(endDate.Int64)
	}
	if maxResults.Valid {
		v := int(maxResults.Int64)
		job.MaxResults = &v
	}
	job.CreatedAt = unixToTime(createdAt)
	if startedAt.Valid {
		job.StartedAt = unixToTime(startedAt.Int64)
	}
	if completedAt.Valid {
		job.CompletedAt = unixToTime(completedAt.Int64)
	}
	job.ErrorMessage = errorMessage.String
	job.CorrelationID = correlationID.String
	if err := job.SetMetadataJSON(metadata.String); err != nil {
		return nil, fmt.Errorf("failed to parse job metadata: %w", err)
	}

	return &job, nil
}
