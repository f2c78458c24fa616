package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/ternarybob/nuntius/internal/storage/sqlite"
)

func setupArticleHandler(t *testing.T) (*ArticleHandler, *sqlite.Manager, func()) {
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

	return NewArticleHandler(storage, logger), storage, func() { storage.Close() }
}

func TestParseArticleFilters(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/articles?category_id=cat_1&limit=10&offset=5&min_relevance=0.5&since=2024-01-01T00:00:00Z", nil)
	opts, err := parseArticleFilters(req)
	require.NoError(t, err)
	assert.Equal(t, "cat_1", opts.CategoryID)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, 5, opts.Offset)
	assert.Equal(t, 0.5, opts.MinRelevance)
	assert.Equal(t, 2024, opts.Since.Year())
}

func TestParseArticleFilters_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "bad limit", query: "limit=abc"},
		{name: "negative offset", query: "offset=-1"},
		{name: "relevance out of range", query: "min_relevance=1.5"},
		{name: "bad since", query: "since=yesterday"},
		{name: "bad until", query: "until=2024-13-99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/articles?"+tt.query, nil)
			_, err := parseArticleFilters(req)
			require.Error(t, err)
			assert.Equal(t, common.KindValidation, common.KindOf(err))
		})
	}
}

func TestArticleHandler_List_InvalidSinceReturns400(t *testing.T) {
	handler, _, cleanup := setupArticleHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/articles?since=garbage", nil)
	rec := httptest.NewRecorder()
	handler.ListHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(common.KindValidation), resp.Kind)
	assert.Contains(t, resp.Error, "since")
}

func TestArticleHandler_GetMissingReturns404(t *testing.T) {
	handler, _, cleanup := setupArticleHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/articles/art_missing", nil)
	rec := httptest.NewRecorder()
	handler.ItemHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
