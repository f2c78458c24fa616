package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/nuntius/internal/models"
)

// SearchRequest describes a provider query for one crawl
type SearchRequest struct {
	Query      string
	Language   string
	Country    string
	StartDate  time.Time
	EndDate    time.Time
	MaxResults int
}

// Extractor - fetches article candidates from the search provider and
// enriches them with page content
type Extractor interface {
	Search(ctx context.Context, req *SearchRequest) ([]*models.ArticleCandidate, error)
	Extract(ctx context.Context, candidate *models.ArticleCandidate) (*models.ArticleCandidate, error)

	// Concurrency is the in-flight extraction cap (browsers x tabs)
	Concurrency() int
}

// CrawlResult summarizes one worker run
type CrawlResult struct {
	ArticlesFound int
	ArticlesSaved int
	Skipped       int
}

// CrawlWorker - executes a single crawl job
type CrawlWorker interface {
	Execute(ctx context.Context, job *models.CrawlJob) (*CrawlResult, error)
}

// SchedulerService - periodic task execution
type SchedulerService interface {
	Start() error
	Stop()
	RunScanNow(ctx context.Context) (*models.ScanResult, error)
}

// Dispatcher - pulls pending jobs into the worker pool
type Dispatcher interface {
	Start()
	Stop()
	RunningCount() int
	Cancel(jobID string) bool
}

// Deduper - content fingerprint observability index
type Deduper interface {
	URLHash(url string) string
	ContentHash(content string) string
	Observe(ctx context.Context, urlHash, contentHash string) error
	Close() error
}
