package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/ternarybob/nuntius/internal/services/jobs"
	"github.com/ternarybob/nuntius/internal/storage/sqlite"
)

func setupScheduler(t *testing.T) (*Service, *sqlite.Manager, func()) {
	tempDir := t.TempDir()
	logger := arbor.NewLogger()

	storage, err := sqlite.NewManager(logger, &common.SQLiteConfig{
		Path:          filepath.Join(tempDir, "test.db"),
		CacheSizeMB:   10,
		BusyTimeoutMS: 5000,
	})
	require.NoError(t, err)

	config := common.NewDefaultConfig()
	jobManager := jobs.NewManager(storage, nil, &config.Jobs, logger)
	service := NewService(storage, jobManager, &config.Scheduler, logger)

	return service, storage, func() { storage.Close() }
}

func createScheduledCategory(t *testing.T, storage *sqlite.Manager, id, name string, nextRun time.Time) {
	now := time.Now().UTC()
	require.NoError(t, storage.CategoryStorage().CreateCategory(context.Background(), &models.Category{
		ID:                      id,
		Name:                    name,
		Keywords:                []string{"python"},
		IsActive:                true,
		ScheduleEnabled:         true,
		ScheduleIntervalMinutes: 60,
		NextScheduledRunAt:      nextRun,
		CreatedAt:               now,
		UpdatedAt:               now,
	}))
}

func TestRunScanNow_CreatesScheduledJob(t *testing.T) {
	service, storage, cleanup := setupScheduler(t)
	defer cleanup()
	ctx := context.Background()

	createScheduledCategory(t, storage, "cat_1", "Technology", time.Now().UTC().Add(-time.Minute))

	result, err := service.RunScanNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DueCategories)
	assert.Equal(t, 1, result.JobsCreated)
	assert.Equal(t, 0, result.Skipped)
	assert.Empty(t, result.Errors)

	created, err := storage.JobStorage().ListJobs(ctx, &interfaces.JobListOptions{CategoryID: "cat_1"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, models.JobStatusPending, created[0].Status)
	assert.Equal(t, models.JobTypeScheduled, created[0].JobType)
	assert.Equal(t, models.MinPriority, created[0].Priority)

	// Schedule bookkeeping advanced one interval
	category, err := storage.CategoryStorage().GetCategory(ctx, "cat_1")
	require.NoError(t, err)
	assert.Equal(t, result.RanAt.Unix(), category.LastScheduledRunAt.Unix())
	assert.Equal(t, result.RanAt.Add(time.Hour).Unix(), category.NextScheduledRunAt.Unix())
}

func TestRunScanNow_SkipsCategoryWithActiveJob(t *testing.T) {
	service, storage, cleanup := setupScheduler(t)
	defer cleanup()
	ctx := context.Background()

	createScheduledCategory(t, storage, "cat_1", "Technology", time.Now().UTC().Add(-time.Minute))

	first, err := service.RunScanNow(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.JobsCreated)

	// Force the category due again while its job is still pending
	require.NoError(t, storage.CategoryStorage().UpdateScheduleRun(ctx, "cat_1",
		time.Now().UTC().Add(-2*time.Hour), time.Now().UTC().Add(-time.Hour)))

	second, err := service.RunScanNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.DueCategories)
	assert.Equal(t, 0, second.JobsCreated)
	assert.Equal(t, 1, second.Skipped)

	created, err := storage.JobStorage().ListJobs(ctx, &interfaces.JobListOptions{CategoryID: "cat_1"})
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestRunScanNow_NothingDue(t *testing.T) {
	service, storage, cleanup := setupScheduler(t)
	defer cleanup()

	createScheduledCategory(t, storage, "cat_1", "Technology", time.Now().UTC().Add(time.Hour))

	result, err := service.RunScanNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.DueCategories)
	assert.Equal(t, 0, result.JobsCreated)
}

func TestRunScanNow_MultipleDueCategories(t *testing.T) {
	service, storage, cleanup := setupScheduler(t)
	defer cleanup()
	ctx := context.Background()

	createScheduledCategory(t, storage, "cat_1", "Alpha", time.Now().UTC().Add(-time.Minute))
	createScheduledCategory(t, storage, "cat_2", "Beta", time.Now().UTC().Add(-time.Minute))

	result, err := service.RunScanNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DueCategories)
	assert.Equal(t, 2, result.JobsCreated)
	assert.Empty(t, result.Errors)

	for _, id := range []string{"cat_1", "cat_2"} {
		created, err := storage.JobStorage().ListJobs(ctx, &interfaces.JobListOptions{CategoryID: id})
		require.NoError(t, err)
		assert.Len(t, created, 1)
	}
}
