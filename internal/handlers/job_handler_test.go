package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/ternarybob/nuntius/internal/services/jobs"
	"github.com/ternarybob/nuntius/internal/storage/sqlite"
)

func setupJobHandler(t *testing.T) (*JobHandler, *sqlite.Manager, func()) {
	tempDir := t.TempDir()
	logger := arbor.NewLogger()

	storage, err := sqlite.NewManager(logger, &common.SQLiteConfig{
		Path:          filepath.Join(tempDir, "test.db"),
		CacheSizeMB:   10,
		BusyTimeoutMS: 5000,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, storage.CategoryStorage().CreateCategory(context.Background(), &models.Category{
		ID:        "cat_1",
		Name:      "Technology",
		Keywords:  []string{"python"},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	config := common.NewDefaultConfig()
	manager := jobs.NewManager(storage, nil, &config.Jobs, logger)
	handler := NewJobHandler(manager, storage, logger)

	return handler, storage, func() { storage.Close() }
}

func TestJobHandler_Create(t *testing.T) {
	handler, _, cleanup := setupJobHandler(t)
	defer cleanup()

	body := `{"category_id": "cat_1", "priority": 5, "max_results": 50}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CollectionHandler(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.CrawlJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "cat_1", created.CategoryID)
	assert.Equal(t, models.JobStatusPending, created.Status)
}

func TestJobHandler_Create_OverlongDateRange(t *testing.T) {
	handler, _, cleanup := setupJobHandler(t)
	defer cleanup()

	body := `{
		"category_id": "cat_1",
		"start_date": "2024-01-01T00:00:00Z",
		"end_date": "2024-05-01T00:00:00Z"
	}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CollectionHandler(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var response errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response.Error, "cannot exceed 90 days")
	assert.Equal(t, string(common.KindValidation), response.Kind)
}

func TestJobHandler_Create_UnknownCategory(t *testing.T) {
	handler, _, cleanup := setupJobHandler(t)
	defer cleanup()

	body := `{"category_id": "cat_missing"}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CollectionHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobHandler_Create_UnknownField(t *testing.T) {
	handler, _, cleanup := setupJobHandler(t)
	defer cleanup()

	body := `{"category_id": "cat_1", "bogus": true}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CollectionHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobHandler_GetAndStatus(t *testing.T) {
	handler, storage, cleanup := setupJobHandler(t)
	defer cleanup()
	ctx := context.Background()

	job := &models.CrawlJob{
		ID:         "job_1",
		CategoryID: "cat_1",
		Status:     models.JobStatusPending,
		Priority:   5,
		JobType:    models.JobTypeOnDemand,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, storage.JobStorage().CreateJob(ctx, job))

	req := httptest.NewRequest(http.MethodGet, "/jobs/job_1", nil)
	rec := httptest.NewRecorder()
	handler.ItemHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/jobs/job_1/status", nil)
	rec = httptest.NewRecorder()
	handler.ItemHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "pending", status["status"])

	req = httptest.NewRequest(http.MethodGet, "/jobs/job_missing", nil)
	rec = httptest.NewRecorder()
	handler.ItemHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobHandler_PatchPriority_RunningJob(t *testing.T) {
	handler, storage, cleanup := setupJobHandler(t)
	defer cleanup()
	ctx := context.Background()

	job := &models.CrawlJob{
		ID:         "job_1",
		CategoryID: "cat_1",
		Status:     models.JobStatusPending,
		Priority:   5,
		JobType:    models.JobTypeOnDemand,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, storage.JobStorage().CreateJob(ctx, job))
	require.NoError(t, storage.JobStorage().MarkJobRunning(ctx, "job_1", "task_1", time.Now()))

	req := httptest.NewRequest(http.MethodPatch, "/jobs/job_1/priority", strings.NewReader(`{"priority": 9}`))
	rec := httptest.NewRecorder()
	handler.ItemHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobHandler_Delete(t *testing.T) {
	handler, storage, cleanup := setupJobHandler(t)
	defer cleanup()
	ctx := context.Background()

	job := &models.CrawlJob{
		ID:         "job_1",
		CategoryID: "cat_1",
		Status:     models.JobStatusPending,
		Priority:   5,
		JobType:    models.JobTypeOnDemand,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, storage.JobStorage().CreateJob(ctx, job))

	req := httptest.NewRequest(http.MethodDelete, "/jobs/job_1", nil)
	rec := httptest.NewRecorder()
	handler.ItemHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var impact models.JobDeleteImpact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &impact))
	assert.False(t, impact.WasRunning)

	_, err := storage.JobStorage().GetJob(ctx, "job_1")
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}
