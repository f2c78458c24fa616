package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/ternarybob/nuntius/internal/services/jobs"
)

// Service runs the periodic tasks: the schedule scan that turns due
// categories into pending jobs, the stuck-job sweep, and old-job cleanup.
// Each task kind runs one at a time.
type Service struct {
	storage interfaces.StorageManager
	jobs    *jobs.Manager
	config  *common.SchedulerConfig
	cron    *cron.Cron
	logger  arbor.ILogger
}

// NewService creates the scheduler
func NewService(storage interfaces.StorageManager, jobManager *jobs.Manager, config *common.SchedulerConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		jobs:    jobManager,
		config:  config,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
	}
}

// Start registers the periodic tasks and starts the cron runner
func (s *Service) Start() error {
	specs := []struct {
		name     string
		interval int
		task     func()
	}{
		{"schedule_scan", s.config.ScanIntervalSeconds, s.scanTask},
		{"health_monitor", s.config.HealthIntervalSeconds, s.healthTask},
		{"cleanup", s.config.CleanupIntervalSeconds, s.cleanupTask},
	}

	for _, spec := range specs {
		interval := spec.interval
		if interval <= 0 {
			s.logger.Warn().Str("task", spec.name).Msg("Task disabled by non-positive interval")
			continue
		}
		if _, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", interval), spec.task); err != nil {
			return fmt.Errorf("failed to register %s task: %w", spec.name, err)
		}
		s.logger.Info().Str("task", spec.name).Int("interval_seconds", interval).Msg("Periodic task registered")
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for running tasks
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Service) scanTask() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := s.RunScanNow(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Schedule scan failed")
		return
	}
	if result.JobsCreated > 0 || len(result.Errors) > 0 {
		s.logger.Info().
			Int("due", result.DueCategories).
			Int("created", result.JobsCreated).
			Int("skipped", result.Skipped).
			Int("errors", len(result.Errors)).
			Msg("Schedule scan completed")
	}
}

// RunScanNow executes one schedule-scan tick. Per-category failures are
// isolated: they land in the result's error list without aborting the tick.
func (s *Service) RunScanNow(ctx context.Context) (*models.ScanResult, error) {
	now := time.Now().UTC()
	result := &models.ScanResult{RanAt: now}

	due, err := s.storage.CategoryStorage().GetDueCategories(ctx, now)
	if err != nil {
		return nil, err
	}
	result.DueCategories = len(due)

	for _, category := range due {
		if err := s.scanCategory(ctx, category, now, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", category.ID, err))
			s.logger.Warn().Err(err).Str("category_id", category.ID).Msg("Schedule scan failed for category")
		}
	}
	return result, nil
}

func (s *Service) scanCategory(ctx context.Context, category *models.Category, now time.Time, result *models.ScanResult) error {
	// One active job per category at a time
	active, err := s.storage.JobStorage().HasActiveJobForCategory(ctx, category.ID)
	if err != nil {
		return err
	}
	if !active {
		job := &models.CrawlJob{
			CategoryID: category.ID,
			Priority:   models.MinPriority,
			JobType:    models.JobTypeScheduled,
			Metadata:   map[string]interface{}{"triggered_by": "scanner"},
		}
		if _, err := s.jobs.CreateJob(ctx, job); err != nil {
			return err
		}
		result.JobsCreated++
	} else {
		result.Skipped++
	}

	nextRun := now.Add(time.Duration(category.ScheduleIntervalMinutes) * time.Minute)
	return s.storage.CategoryStorage().UpdateScheduleRun(ctx, category.ID, now, nextRun)
}

func (s *Service) healthTask() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.jobs.ResetStuckJobs(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Stuck-job sweep failed")
	}
}

func (s *Service) cleanupTask() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.jobs.CleanupOldJobs(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Job cleanup failed")
	}
}

var _ interfaces.SchedulerService = (*Service)(nil)
