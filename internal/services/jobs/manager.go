package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// maxDateRange caps an explicit job date window
const maxDateRange = 90 * 24 * time.Hour

// Manager implements job lifecycle operations above raw storage
type Manager struct {
	storage    interfaces.StorageManager
	dispatcher interfaces.Dispatcher
	config     *common.JobsConfig
	logger     arbor.ILogger
}

// NewManager creates a job manager. The dispatcher may be nil in tests.
func NewManager(storage interfaces.StorageManager, dispatcher interfaces.Dispatcher, config *common.JobsConfig, logger arbor.ILogger) *Manager {
	return &Manager{
		storage:    storage,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger,
	}
}

// CreateJob validates and persists a new pending job
func (m *Manager) CreateJob(ctx context.Context, job *models.CrawlJob) (*models.CrawlJob, error) {
	if job.CategoryID == "" {
		return nil, common.NewError(common.KindValidation, "category_id is required")
	}
	if _, err := m.storage.CategoryStorage().GetCategory(ctx, job.CategoryID); err != nil {
		return nil, err
	}
	if job.Priority < models.MinPriority || job.Priority > models.MaxPriority {
		return nil, common.Errorf(common.KindValidation, "priority must be between %d and %d", models.MinPriority, models.MaxPriority)
	}
	if err := ValidateDateRange(job.StartDate, job.EndDate); err != nil {
		return nil, err
	}
	if job.MaxResults != nil && (*job.MaxResults < 0 || *job.MaxResults > m.config.MaxResultsLimit) {
		return nil, common.Errorf(common.KindValidation, "max_results must be between 0 and %d", m.config.MaxResultsLimit)
	}

	if job.ID == "" {
		job.ID = common.NewJobID()
	}
	if job.CorrelationID == "" {
		job.CorrelationID = common.NewCorrelationID()
	}
	if job.JobType == "" {
		job.JobType = models.JobTypeOnDemand
	}
	job.Status = models.JobStatusPending
	job.CreatedAt = time.Now().UTC()
	job.StartedAt = time.Time{}
	job.CompletedAt = time.Time{}

	if err := m.storage.JobStorage().CreateJob(ctx, job); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("job_id", job.ID).
		Str("category_id", job.CategoryID).
		Str("job_type", string(job.JobType)).
		Int("priority", job.Priority).
		Msg("Job created")
	return job, nil
}

// GetJob fetches a job by ID
func (m *Manager) GetJob(ctx context.Context, id string) (*models.CrawlJob, error) {
	return m.storage.JobStorage().GetJob(ctx, id)
}

// ListJobs lists jobs with filters
func (m *Manager) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.CrawlJob, error) {
	return m.storage.JobStorage().ListJobs(ctx, opts)
}

// UpdatePriority changes a non-running job's priority
func (m *Manager) UpdatePriority(ctx context.Context, id string, priority int) (*models.CrawlJob, error) {
	if priority < models.MinPriority || priority > models.MaxPriority {
		return nil, common.Errorf(common.KindValidation, "priority must be between %d and %d", models.MinPriority, models.MaxPriority)
	}

	job, err := m.storage.JobStorage().GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusRunning {
		return nil, common.NewError(common.KindStateViolation, "cannot change priority of a running job")
	}

	job.Priority = priority
	if err := m.storage.JobStorage().UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// JobPatch carries the fields UpdateJob may change
type JobPatch struct {
	Priority   *int
	RetryCount *int
	Metadata   map[string]interface{}
}

// UpdateJob applies a partial update to a non-running job
func (m *Manager) UpdateJob(ctx context.Context, id string, patch *JobPatch) (*models.CrawlJob, error) {
	job, err := m.storage.JobStorage().GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusRunning {
		return nil, common.NewError(common.KindStateViolation, "cannot update a running job")
	}

	if patch.Priority != nil {
		if *patch.Priority < models.MinPriority || *patch.Priority > models.MaxPriority {
			return nil, common.Errorf(common.KindValidation, "priority must be between %d and %d", models.MinPriority, models.MaxPriority)
		}
		job.Priority = *patch.Priority
	}
	if patch.RetryCount != nil {
		if *patch.RetryCount < 0 || *patch.RetryCount > models.MaxRetryCount {
			return nil, common.Errorf(common.KindValidation, "retry_count must be between 0 and %d", models.MaxRetryCount)
		}
		job.RetryCount = *patch.RetryCount
	}
	if patch.Metadata != nil {
		job.Metadata = patch.Metadata
	}

	if err := m.storage.JobStorage().UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ExecuteNow clones a job as a max-priority on-demand job and returns the
// clone
func (m *Manager) ExecuteNow(ctx context.Context, id string) (*models.CrawlJob, error) {
	source, err := m.storage.JobStorage().GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	clone := &models.CrawlJob{
		CategoryID: source.CategoryID,
		Priority:   models.MaxPriority,
		JobType:    models.JobTypeOnDemand,
		StartDate:  source.StartDate,
		EndDate:    source.EndDate,
		Metadata:   map[string]interface{}{"cloned_from": source.ID},
	}
	if source.MaxResults != nil {
		v := *source.MaxResults
		clone.MaxResults = &v
	}
	return m.CreateJob(ctx, clone)
}

// CancelJob requests cancellation of a running job
func (m *Manager) CancelJob(ctx context.Context, id string) error {
	job, err := m.storage.JobStorage().GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusRunning {
		return common.NewError(common.KindStateViolation, "job is not running")
	}
	if m.dispatcher != nil && m.dispatcher.Cancel(id) {
		return nil
	}
	// Not executing in this process; fail it directly
	return m.storage.JobStorage().MarkJobFailed(ctx, id, time.Now().UTC(), "cancelled")
}

// DeleteJob removes a job and reports the article impact. Running jobs
// require force. When deleteArticles is false, tracked articles are detached;
// when true, articles tracked solely by this job with no surviving category
// links are deleted, the rest detached.
func (m *Manager) DeleteJob(ctx context.Context, id string, force, deleteArticles bool) (*models.JobDeleteImpact, error) {
	job, err := m.storage.JobStorage().GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	impact := &models.JobDeleteImpact{WasRunning: job.Status == models.JobStatusRunning}
	if impact.WasRunning {
		if !force {
			return nil, common.NewError(common.KindStateViolation, "job is running; use force to delete")
		}
		if m.dispatcher != nil {
			m.dispatcher.Cancel(id)
		}
	}

	affected, err := m.storage.ArticleStorage().CountArticlesForJob(ctx, id)
	if err != nil {
		return nil, err
	}
	impact.ArticlesAffected = affected

	if deleteArticles {
		deleted, err := m.storage.ArticleStorage().DeleteArticlesForJob(ctx, id)
		if err != nil {
			return nil, err
		}
		impact.ArticlesDeleted = deleted
	}
	if _, err := m.storage.ArticleStorage().DetachJob(ctx, id); err != nil {
		return nil, err
	}

	if err := m.storage.JobStorage().DeleteJob(ctx, id); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("job_id", id).
		Int("articles_affected", impact.ArticlesAffected).
		Int("articles_deleted", impact.ArticlesDeleted).
		Bool("was_running", impact.WasRunning).
		Msg("Job deleted")
	return impact, nil
}

// ResetStuckJobs fails running jobs older than the stuck threshold, counting
// each lost run as a retry. An alert is logged when any job was reset.
func (m *Manager) ResetStuckJobs(ctx context.Context) (int, error) {
	threshold := time.Now().UTC().Add(-time.Duration(m.config.StuckThresholdHours) * time.Hour)
	stuck, err := m.storage.JobStorage().FindStuckJobs(ctx, threshold)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, job := range stuck {
		if err := m.storage.JobStorage().ResetStuckJob(ctx, job.ID); err != nil {
			m.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to reset stuck job")
			continue
		}
		reset++
	}

	if reset > 0 {
		m.logger.Error().
			Int("count", reset).
			Msg("ALERT: stuck jobs failed")
	}
	return reset, nil
}

// CleanupOldJobs deletes terminal jobs past the retention window
func (m *Manager) CleanupOldJobs(ctx context.Context) (int, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -m.config.CleanupDays)
	removed, err := m.storage.JobStorage().CleanupOldJobs(ctx, threshold)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.logger.Info().Int("count", removed).Msg("Old jobs cleaned up")
	}
	return removed, nil
}

// ValidateDateRange enforces the explicit-window rules: end after start and
// the span at most 90 days.
func ValidateDateRange(start, end time.Time) error {
	if start.IsZero() && end.IsZero() {
		return nil
	}
	if start.IsZero() != end.IsZero() {
		return common.NewError(common.KindValidation, "start_date and end_date must be supplied together")
	}
	if !end.After(start) {
		return common.NewError(common.KindValidation, "end_date must be after start_date")
	}
	if end.Sub(start) > maxDateRange {
		return common.NewError(common.KindValidation, fmt.Sprintf("date range cannot exceed 90 days (got %.0f days)", end.Sub(start).Hours()/24))
	}
	return nil
}
