package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/nuntius/internal/models"
)

// CategoryListOptions filters category listings
type CategoryListOptions struct {
	ActiveOnly    bool
	ScheduledOnly bool
	Limit         int
	Offset        int
}

// JobListOptions filters job listings
type JobListOptions struct {
	Status     models.JobStatus
	CategoryID string
	JobType    models.JobType
	Limit      int
	Offset     int
}

// ArticleListOptions filters article listings
type ArticleListOptions struct {
	CategoryID   string
	MinRelevance float64
	Since        time.Time
	Until        time.Time
	Search       string
	Limit        int
	Offset       int
}

// CategoryStorage - interface for category persistence
type CategoryStorage interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListCategories(ctx context.Context, opts *CategoryListOptions) ([]*models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
	CountCategories(ctx context.Context, activeOnly bool) (int, error)

	// Schedule operations
	GetDueCategories(ctx context.Context, now time.Time) ([]*models.Category, error)
	UpdateScheduleRun(ctx context.Context, id string, lastRun, nextRun time.Time) error
}

// JobStorage - interface for crawl job persistence
type JobStorage interface {
	CreateJob(ctx context.Context, job *models.CrawlJob) error
	GetJob(ctx context.Context, id string) (*models.CrawlJob, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.CrawlJob, error)
	UpdateJob(ctx context.Context, job *models.CrawlJob) error
	DeleteJob(ctx context.Context, id string) error
	CountJobs(ctx context.Context, status models.JobStatus) (int, error)
	GetJobStats(ctx context.Context) (*models.JobStats, error)

	// Lifecycle operations
	HasActiveJobForCategory(ctx context.Context, categoryID string) (bool, error)
	GetPendingJobs(ctx context.Context, limit int) ([]*models.CrawlJob, error)
	MarkJobRunning(ctx context.Context, id, externalTaskID string, startedAt time.Time) error
	MarkJobCompleted(ctx context.Context, id string, completedAt time.Time, found, saved int) error
	MarkJobFailed(ctx context.Context, id string, completedAt time.Time, errorMessage string) error
	RequeueJob(ctx context.Context, id string, errorMessage string) error

	// Maintenance operations
	FindStuckJobs(ctx context.Context, olderThan time.Time) ([]*models.CrawlJob, error)
	ResetStuckJob(ctx context.Context, id string) error
	CleanupOldJobs(ctx context.Context, olderThan time.Time) (int, error)
}

// ArticleStorage - interface for article and link persistence
type ArticleStorage interface {
	// UpsertArticleWithLinks inserts or updates an article by URL hash and
	// merges the given category links in a single transaction. Returns the
	// stored article and whether a new row was created.
	UpsertArticleWithLinks(ctx context.Context, article *models.Article, links []models.CategoryLink) (*models.Article, bool, error)

	GetArticle(ctx context.Context, id string) (*models.Article, error)
	GetArticleByURLHash(ctx context.Context, urlHash string) (*models.Article, error)
	ListArticles(ctx context.Context, opts *ArticleListOptions) ([]*models.Article, error)
	DeleteArticle(ctx context.Context, id string) error
	CountArticles(ctx context.Context) (int, error)
	GetArticleStats(ctx context.Context) (*models.ArticleStats, error)

	// Link operations
	GetLinks(ctx context.Context, articleID string) ([]models.CategoryLink, error)
	UnlinkCategory(ctx context.Context, categoryID string) (int, error)

	// Job deletion support: DetachJob clears crawl_job_id references;
	// DeleteArticlesForJob removes articles tracked solely by the job that
	// hold no category links.
	DetachJob(ctx context.Context, jobID string) (int, error)
	DeleteArticlesForJob(ctx context.Context, jobID string) (int, error)
	CountArticlesForJob(ctx context.Context, jobID string) (int, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	CategoryStorage() CategoryStorage
	JobStorage() JobStorage
	ArticleStorage() ArticleStorage
	Ping(ctx context.Context) error
	Close() error
}
