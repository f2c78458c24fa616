package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/ternarybob/nuntius/internal/services/dedup"
)

func testArticle(id, url string) *models.Article {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Article{
		ID:              id,
		Title:           "Python AI breakthrough",
		Content:         "Researchers built a new framework in Python.",
		SourceURL:       url,
		URLHash:         dedup.URLHash(url),
		ContentHash:     dedup.ContentHash("Researchers built a new framework in Python."),
		KeywordsMatched: []string{"python", "ai"},
		RelevanceScore:  1.0,
		LastSeen:        now,
		CrawlJobID:      "job_1",
		CreatedAt:       now,
	}
}

func setupArticleStorage(t *testing.T) (interfaces.ArticleStorage, interfaces.CategoryStorage, func()) {
	db, cleanup := setupTestDB(t)
	logger := arbor.NewLogger()

	categories := NewCategoryStorage(db, logger)
	require.NoError(t, categories.CreateCategory(context.Background(), testCategory("cat_1", "Technology")))

	return NewArticleStorage(db, logger), categories, cleanup
}

func TestArticleStorage_UpsertIdempotent(t *testing.T) {
	storage, _, cleanup := setupArticleStorage(t)
	defer cleanup()
	ctx := context.Background()

	article := testArticle("art_1", "https://example.com/story")
	links := []models.CategoryLink{{CategoryID: "cat_1", RelevanceScore: 1.0}}

	_, created, err := storage.UpsertArticleWithLinks(ctx, article, links)
	require.NoError(t, err)
	assert.True(t, created)

	// Same URL again: no new row, no duplicated link
	again := testArticle("art_2", "https://example.com/story")
	stored, created, err := storage.UpsertArticleWithLinks(ctx, again, links)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "art_1", stored.ID)

	count, err := storage.CountArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	storedLinks, err := storage.GetLinks(ctx, "art_1")
	require.NoError(t, err)
	assert.Len(t, storedLinks, 1)
}

func TestArticleStorage_ResightBackfillsContent(t *testing.T) {
	storage, _, cleanup := setupArticleStorage(t)
	defer cleanup()
	ctx := context.Background()

	bare := testArticle("art_1", "https://example.com/story")
	bare.Content = ""
	bare.ContentHash = ""
	_, _, err := storage.UpsertArticleWithLinks(ctx, bare, nil)
	require.NoError(t, err)

	full := testArticle("art_2", "https://example.com/story")
	full.LastSeen = bare.LastSeen.Add(time.Minute)
	full.CrawlJobID = "job_2"
	stored, created, err := storage.UpsertArticleWithLinks(ctx, full, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, full.Content, stored.Content)
	assert.Equal(t, full.ContentHash, stored.ContentHash)
	assert.Equal(t, "job_2", stored.CrawlJobID)
	assert.Equal(t, full.LastSeen.Unix(), stored.LastSeen.Unix())
}

func TestArticleStorage_ResightKeepsExistingContent(t *testing.T) {
	storage, _, cleanup := setupArticleStorage(t)
	defer cleanup()
	ctx := context.Background()

	original := testArticle("art_1", "https://example.com/story")
	_, _, err := storage.UpsertArticleWithLinks(ctx, original, nil)
	require.NoError(t, err)

	revised := testArticle("art_2", "https://example.com/story")
	revised.Content = "A completely different body."
	revised.ContentHash = dedup.ContentHash(revised.Content)
	revised.KeywordsMatched = []string{"framework"}
	revised.RelevanceScore = 0.5

	stored, _, err := storage.UpsertArticleWithLinks(ctx, revised, nil)
	require.NoError(t, err)

	// Stored content wins, keywords merge, relevance keeps its maximum
	assert.Equal(t, original.Content, stored.Content)
	assert.Equal(t, original.ContentHash, stored.ContentHash)
	assert.Equal(t, []string{"python", "ai", "framework"}, stored.KeywordsMatched)
	assert.Equal(t, 1.0, stored.RelevanceScore)
}

func TestArticleStorage_LinkRelevanceNeverLowers(t *testing.T) {
	storage, _, cleanup := setupArticleStorage(t)
	defer cleanup()
	ctx := context.Background()

	article := testArticle("art_1", "https://example.com/story")
	_, _, err := storage.UpsertArticleWithLinks(ctx, article,
		[]models.CategoryLink{{CategoryID: "cat_1", RelevanceScore: 0.5}})
	require.NoError(t, err)

	// A later sighting with a lower score leaves the link untouched
	again := testArticle("art_2", "https://example.com/story")
	_, _, err = storage.UpsertArticleWithLinks(ctx, again,
		[]models.CategoryLink{{CategoryID: "cat_1", RelevanceScore: 0.3}})
	require.NoError(t, err)

	links, err := storage.GetLinks(ctx, "art_1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, 0.5, links[0].RelevanceScore)

	// A higher score raises it
	raised := testArticle("art_3", "https://example.com/story")
	_, _, err = storage.UpsertArticleWithLinks(ctx, raised,
		[]models.CategoryLink{{CategoryID: "cat_1", RelevanceScore: 1.0}})
	require.NoError(t, err)

	links, err = storage.GetLinks(ctx, "art_1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, 1.0, links[0].RelevanceScore)
}

func TestArticleStorage_DetachJobKeepsLinkedArticles(t *testing.T) {
	storage, _, cleanup := setupArticleStorage(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		url := fmt.Sprintf("https://example.com/story-%d", i)
		article := testArticle(fmt.Sprintf("art_%d", i), url)
		_, _, err := storage.UpsertArticleWithLinks(ctx, article,
			[]models.CategoryLink{{CategoryID: "cat_1", RelevanceScore: 1.0}})
		require.NoError(t, err)
	}

	affected, err := storage.CountArticlesForJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, 10, affected)

	// Every article holds a category link, so none are deleted
	deleted, err := storage.DeleteArticlesForJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	detached, err := storage.DetachJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, 10, detached)

	got, err := storage.GetArticle(ctx, "art_0")
	require.NoError(t, err)
	assert.Empty(t, got.CrawlJobID)

	count, err := storage.CountArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestArticleStorage_DeleteArticlesForJob_UnlinkedOnly(t *testing.T) {
	storage, _, cleanup := setupArticleStorage(t)
	defer cleanup()
	ctx := context.Background()

	linked := testArticle("art_linked", "https://example.com/linked")
	_, _, err := storage.UpsertArticleWithLinks(ctx, linked,
		[]models.CategoryLink{{CategoryID: "cat_1", RelevanceScore: 1.0}})
	require.NoError(t, err)

	orphan := testArticle("art_orphan", "https://example.com/orphan")
	_, _, err = storage.UpsertArticleWithLinks(ctx, orphan, nil)
	require.NoError(t, err)

	deleted, err := storage.DeleteArticlesForJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = storage.GetArticle(ctx, "art_orphan")
	assert.Equal(t, common.KindNotFound, common.KindOf(err))

	_, err = storage.GetArticle(ctx, "art_linked")
	assert.NoError(t, err)
}

func TestArticleStorage_ListByCategory(t *testing.T) {
	storage, categories, cleanup := setupArticleStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, categories.CreateCategory(ctx, testCategory("cat_2", "Science")))

	inTech := testArticle("art_1", "https://example.com/tech")
	_, _, err := storage.UpsertArticleWithLinks(ctx, inTech,
		[]models.CategoryLink{{CategoryID: "cat_1", RelevanceScore: 1.0}})
	require.NoError(t, err)

	inScience := testArticle("art_2", "https://example.com/science")
	_, _, err = storage.UpsertArticleWithLinks(ctx, inScience,
		[]models.CategoryLink{{CategoryID: "cat_2", RelevanceScore: 0.5}})
	require.NoError(t, err)

	articles, err := storage.ListArticles(ctx, &interfaces.ArticleListOptions{CategoryID: "cat_1"})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "art_1", articles[0].ID)
	require.Len(t, articles[0].Categories, 1)
	assert.Equal(t, "Technology", articles[0].Categories[0].CategoryName)

	// Relevance floor filters the 0.5 link out
	articles, err = storage.ListArticles(ctx, &interfaces.ArticleListOptions{CategoryID: "cat_2", MinRelevance: 0.6})
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestArticleStorage_CategoryDeleteCascadesLinks(t *testing.T) {
	storage, categories, cleanup := setupArticleStorage(t)
	defer cleanup()
	ctx := context.Background()

	article := testArticle("art_1", "https://example.com/story")
	_, _, err := storage.UpsertArticleWithLinks(ctx, article,
		[]models.CategoryLink{{CategoryID: "cat_1", RelevanceScore: 1.0}})
	require.NoError(t, err)

	require.NoError(t, categories.DeleteCategory(ctx, "cat_1"))

	// The article survives with its link gone
	got, err := storage.GetArticle(ctx, "art_1")
	require.NoError(t, err)
	assert.Empty(t, got.Categories)
}

func TestArticleStorage_ConcurrentUpsertSameURL(t *testing.T) {
	storage, _, cleanup := setupArticleStorage(t)
	defer cleanup()
	ctx := context.Background()

	links := []models.CategoryLink{{CategoryID: "cat_1", RelevanceScore: 1.0}}

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			article := testArticle(fmt.Sprintf("art_%d", i), "https://example.com/story")
			_, _, err := storage.UpsertArticleWithLinks(ctx, article, links)
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	// All writers converge on a single row with a single link
	count, err := storage.CountArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := storage.GetArticleByURLHash(ctx, dedup.URLHash("https://example.com/story"))
	require.NoError(t, err)
	storedLinks, err := storage.GetLinks(ctx, got.ID)
	require.NoError(t, err)
	assert.Len(t, storedLinks, 1)
}
