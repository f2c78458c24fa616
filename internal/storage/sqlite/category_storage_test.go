package sqlite

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
)

func setupTestDB(t *testing.T) (*SQLiteDB, func()) {
	tempDir := t.TempDir()
	config := &common.SQLiteConfig{
		Path:          filepath.Join(tempDir, "test.db"),
		CacheSizeMB:   10,
		BusyTimeoutMS: 5000,
	}
	logger := arbor.NewLogger()

	db, err := NewSQLiteDB(logger, config)
	require.NoError(t, err)

	return db, func() { db.Close() }
}

func testCategory(id, name string) *models.Category {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Category{
		ID:        id,
		Name:      name,
		Keywords:  []string{"python", "ai"},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCategoryStorage_CreateAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewCategoryStorage(db, arbor.NewLogger())
	ctx := context.Background()

	category := testCategory("cat_1", "Technology")
	category.ExcludeKeywords = []string{"crypto"}
	category.Language = "en"
	category.Country = "us"
	category.CrawlPeriod = "7d"
	require.NoError(t, storage.CreateCategory(ctx, category))

	got, err := storage.GetCategory(ctx, "cat_1")
	require.NoError(t, err)
	assert.Equal(t, "Technology", got.Name)
	assert.Equal(t, []string{"python", "ai"}, got.Keywords)
	assert.Equal(t, []string{"crypto"}, got.ExcludeKeywords)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, "us", got.Country)
	assert.Equal(t, "7d", got.CrawlPeriod)
	assert.True(t, got.IsActive)
}

func TestCategoryStorage_GetNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewCategoryStorage(db, arbor.NewLogger())

	_, err := storage.GetCategory(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestCategoryStorage_DuplicateName(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewCategoryStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.CreateCategory(ctx, testCategory("cat_1", "Technology")))

	err := storage.CreateCategory(ctx, testCategory("cat_2", "Technology"))
	require.Error(t, err)
	assert.Equal(t, common.KindDuplicate, common.KindOf(err))
}

func TestCategoryStorage_Update(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewCategoryStorage(db, arbor.NewLogger())
	ctx := context.Background()

	category := testCategory("cat_1", "Technology")
	require.NoError(t, storage.CreateCategory(ctx, category))

	category.Name = "Tech News"
	category.Keywords = []string{"golang"}
	category.IsActive = false
	require.NoError(t, storage.UpdateCategory(ctx, category))

	got, err := storage.GetCategory(ctx, "cat_1")
	require.NoError(t, err)
	assert.Equal(t, "Tech News", got.Name)
	assert.Equal(t, []string{"golang"}, got.Keywords)
	assert.False(t, got.IsActive)
}

func TestCategoryStorage_Delete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewCategoryStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.CreateCategory(ctx, testCategory("cat_1", "Technology")))
	require.NoError(t, storage.DeleteCategory(ctx, "cat_1"))

	_, err := storage.GetCategory(ctx, "cat_1")
	assert.Equal(t, common.KindNotFound, common.KindOf(err))

	err = storage.DeleteCategory(ctx, "cat_1")
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestCategoryStorage_ListActiveOnly(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewCategoryStorage(db, arbor.NewLogger())
	ctx := context.Background()

	active := testCategory("cat_1", "Active")
	require.NoError(t, storage.CreateCategory(ctx, active))

	inactive := testCategory("cat_2", "Inactive")
	inactive.IsActive = false
	require.NoError(t, storage.CreateCategory(ctx, inactive))

	all, err := storage.ListCategories(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	activeOnly, err := storage.ListCategories(ctx, &interfaces.CategoryListOptions{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, "cat_1", activeOnly[0].ID)
}

func TestCategoryStorage_GetDueCategories(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewCategoryStorage(db, arbor.NewLogger())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	due := testCategory("cat_due", "Due")
	due.ScheduleEnabled = true
	due.ScheduleIntervalMinutes = 60
	due.NextScheduledRunAt = now.Add(-time.Minute)
	require.NoError(t, storage.CreateCategory(ctx, due))

	future := testCategory("cat_future", "Future")
	future.ScheduleEnabled = true
	future.ScheduleIntervalMinutes = 60
	future.NextScheduledRunAt = now.Add(time.Hour)
	require.NoError(t, storage.CreateCategory(ctx, future))

	inactive := testCategory("cat_inactive", "Sleeping")
	inactive.IsActive = false
	inactive.ScheduleEnabled = true
	inactive.ScheduleIntervalMinutes = 60
	inactive.NextScheduledRunAt = now.Add(-time.Minute)
	require.NoError(t, storage.CreateCategory(ctx, inactive))

	unscheduled := testCategory("cat_manual", "Manual")
	require.NoError(t, storage.CreateCategory(ctx, unscheduled))

	dueList, err := storage.GetDueCategories(ctx, now)
	require.NoError(t, err)
	require.Len(t, dueList, 1)
	assert.Equal(t, "cat_due", dueList[0].ID)
}

func TestCategoryStorage_UpdateScheduleRun(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewCategoryStorage(db, arbor.NewLogger())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	category := testCategory("cat_1", "Technology")
	category.ScheduleEnabled = true
	category.ScheduleIntervalMinutes = 60
	category.NextScheduledRunAt = now.Add(-time.Minute)
	require.NoError(t, storage.CreateCategory(ctx, category))

	nextRun := now.Add(time.Hour)
	require.NoError(t, storage.UpdateScheduleRun(ctx, "cat_1", now, nextRun))

	got, err := storage.GetCategory(ctx, "cat_1")
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), got.LastScheduledRunAt.Unix())
	assert.Equal(t, nextRun.Unix(), got.NextScheduledRunAt.Unix())

	// The category is no longer due
	dueList, err := storage.GetDueCategories(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, dueList)
}
