package models

import (
	"time"
)

// Article is a deduplicated news article. Identity is the URL hash; the same
// URL observed from any source resolves to one row.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	Author      string    `json:"author,omitempty"`
	PublishDate time.Time `json:"publish_date,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	SourceURL   string    `json:"source_url"`

	// URLHash is SHA-256 of the trimmed source URL, unique across articles.
	// ContentHash is SHA-256 of the content when content is present.
	URLHash     string `json:"url_hash"`
	ContentHash string `json:"content_hash,omitempty"`

	KeywordsMatched []string `json:"keywords_matched,omitempty"`
	RelevanceScore  float64  `json:"relevance_score"`

	// LastSeen advances on every re-sighting. CrawlJobID tracks the job that
	// most recently observed the article and is cleared if that job is
	// deleted without deleting articles.
	LastSeen   time.Time `json:"last_seen"`
	CrawlJobID string    `json:"crawl_job_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Categories is populated on reads that join links; not persisted on the
	// article row itself.
	Categories []CategoryLink `json:"categories,omitempty"`
}

// CategoryLink associates an article with a category at a given relevance
type CategoryLink struct {
	CategoryID     string  `json:"category_id"`
	CategoryName   string  `json:"category_name,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// ArticleCandidate is a search result before dedup and linking. Only Title
// and SourceURL are guaranteed present.
type ArticleCandidate struct {
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	Author      string    `json:"author,omitempty"`
	PublishDate time.Time `json:"publish_date,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	SourceURL   string    `json:"source_url"`
}

// ArticleStats aggregates article counts for the stats endpoint
type ArticleStats struct {
	TotalArticles      int            `json:"total_articles"`
	ArticlesLast24h    int            `json:"articles_last_24h"`
	ArticlesLast7d     int            `json:"articles_last_7d"`
	CountsByCategory   map[string]int `json:"counts_by_category"`
	AverageRelevance   float64        `json:"average_relevance"`
	ArticlesWithImages int            `json:"articles_with_images"`
}
