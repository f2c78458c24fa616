package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// ArticleStorage implements SQLite storage for articles and category links
type ArticleStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewArticleStorage creates a new article storage instance
func NewArticleStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.ArticleStorage {
	return &ArticleStorage{
		db:     db,
		logger: logger,
	}
}

const articleColumns = `id, title, content, author, publish_date, image_url, source_url,
	url_hash, content_hash, keywords_matched, relevance_score, last_seen, crawl_job_id, created_at`

// UpsertArticleWithLinks inserts or updates an article by URL hash and merges
// category links, all in one transaction.
//
// On re-sighting an existing article: last_seen and crawl_job_id advance,
// content and content_hash backfill only when the stored content is empty,
// keywords merge, and relevance keeps its maximum. Link merging inserts
// missing links and raises relevance on existing ones, never lowers it.
func (s *ArticleStorage) UpsertArticleWithLinks(ctx context.Context, article *models.Article, links []models.CategoryLink) (*models.Article, bool, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, false, common.WrapError(common.KindDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	existing, err := s.getByURLHashTx(ctx, tx, article.URLHash)
	if err != nil && err != sql.ErrNoRows {
		return nil, false, err
	}

	created := existing == nil
	var stored *models.Article

	if created {
		stored, err = s.insertArticleTx(ctx, tx, article)
	} else {
		stored, err = s.resightArticleTx(ctx, tx, existing, article)
	}
	if err != nil {
		return nil, false, err
	}

	for _, link := range links {
		if err := s.mergeLinkTx(ctx, tx, stored.ID, link); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, common.WrapError(common.KindDatabase, "failed to commit article upsert", err)
	}

	s.logger.Debug().
		Str("article_id", stored.ID).
		Bool("created", created).
		Int("links", len(links)).
		Msg("Article upserted")
	return stored, created, nil
}

func (s *ArticleStorage) insertArticleTx(ctx context.Context, tx *sql.Tx, article *models.Article) (*models.Article, error) {
	keywordsJSON, err := marshalStrings(article.KeywordsMatched)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize matched keywords: %w", err)
	}

	query := `
		INSERT INTO articles (` + articleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		article.ID,
		article.Title,
		nullableString(article.Content),
		nullableString(article.Author),
		nullableUnix(article.PublishDate),
		nullableString(article.ImageURL),
		article.SourceURL,
		article.URLHash,
		nullableString(article.ContentHash),
		keywordsJSON,
		article.RelevanceScore,
		article.LastSeen.Unix(),
		nullableString(article.CrawlJobID),
		article.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to insert article", err)
	}
	return article, nil
}

func (s *ArticleStorage) resightArticleTx(ctx context.Context, tx *sql.Tx, existing, incoming *models.Article) (*models.Article, error) {
	merged := *existing

	if merged.Content == "" && incoming.Content != "" {
		merged.Content = incoming.Content
		merged.ContentHash = incoming.ContentHash
	}
	if merged.Title == "" {
		merged.Title = incoming.Title
	}
	if merged.Author == "" {
		merged.Author = incoming.Author
	}
	if merged.ImageURL == "" {
		merged.ImageURL = incoming.ImageURL
	}
	if merged.PublishDate.IsZero() {
		merged.PublishDate = incoming.PublishDate
	}
	merged.KeywordsMatched = mergeKeywords(merged.KeywordsMatched, incoming.KeywordsMatched)
	if incoming.RelevanceScore > merged.RelevanceScore {
		merged.RelevanceScore = incoming.RelevanceScore
	}
	if incoming.LastSeen.After(merged.LastSeen) {
		merged.LastSeen = incoming.LastSeen
	}
	if incoming.CrawlJobID != "" {
		merged.CrawlJobID = incoming.CrawlJobID
	}

	keywordsJSON, err := marshalStrings(merged.KeywordsMatched)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize matched keywords: %w", err)
	}

	query := `
		UPDATE articles SET
			title = ?, content = ?, author = ?, publish_date = ?, image_url = ?,
			content_hash = ?, keywords_matched = ?, relevance_score = ?,
			last_seen = ?, crawl_job_id = ?
		WHERE id = ?
	`
	_, err = tx.ExecContext(ctx, query,
		merged.Title,
		nullableString(merged.Content),
		nullableString(merged.Author),
		nullableUnix(merged.PublishDate),
		nullableString(merged.ImageURL),
		nullableString(merged.ContentHash),
		keywordsJSON,
		merged.RelevanceScore,
		merged.LastSeen.Unix(),
		nullableString(merged.CrawlJobID),
		merged.ID,
	)
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to update article", err)
	}
	return &merged, nil
}

func (s *ArticleStorage) mergeLinkTx(ctx context.Context, tx *sql.Tx, articleID string, link models.CategoryLink) error {
	query := `
		INSERT INTO article_categories (article_id, category_id, relevance_score)
		VALUES (?, ?, ?)
		ON CONFLICT(article_id, category_id) DO UPDATE SET
			relevance_score = MAX(relevance_score, excluded.relevance_score)
	`
	_, err := tx.ExecContext(ctx, query, articleID, link.CategoryID, link.RelevanceScore)
	if err != nil {
		return common.WrapError(common.KindDatabase, "failed to merge category link", err)
	}
	return nil
}

func (s *ArticleStorage) getByURLHashTx(ctx context.Context, tx *sql.Tx, urlHash string) (*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE url_hash = ?`
	row := tx.QueryRowContext(ctx, query, urlHash)
	article, err := s.scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, err
	}
	return article, err
}

// GetArticle retrieves an article by ID with its category links
func (s *ArticleStorage) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = ?`
	row := s.db.db.QueryRowContext(ctx, query, id)
	article, err := s.scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, common.Errorf(common.KindNotFound, "article %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	links, err := s.GetLinks(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	article.Categories = links
	return article, nil
}

// GetArticleByURLHash retrieves an article by its URL hash
func (s *ArticleStorage) GetArticleByURLHash(ctx context.Context, urlHash string) (*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE url_hash = ?`
	row := s.db.db.QueryRowContext(ctx, query, urlHash)
	article, err := s.scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, common.Errorf(common.KindNotFound, "article with url hash %s not found", urlHash)
	}
	return article, err
}

// ListArticles lists articles with filters, most recently seen first
func (s *ArticleStorage) ListArticles(ctx context.Context, opts *interfaces.ArticleListOptions) ([]*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles a WHERE 1=1`
	args := []interface{}{}

	if opts != nil {
		if opts.CategoryID != "" {
			query = `
				SELECT ` + prefixColumns("a", articleColumns) + `
				FROM articles a
				JOIN article_categories ac ON ac.article_id = a.id
				WHERE ac.category_id = ?
			`
			args = append(args, opts.CategoryID)
			if opts.MinRelevance > 0 {
				query += " AND ac.relevance_score >= ?"
				args = append(args, opts.MinRelevance)
			}
		} else if opts.MinRelevance > 0 {
			query += " AND a.relevance_score >= ?"
			args = append(args, opts.MinRelevance)
		}
		if !opts.Since.IsZero() {
			query += " AND a.last_seen >= ?"
			args = append(args, opts.Since.Unix())
		}
		if !opts.Until.IsZero() {
			query += " AND a.last_seen <= ?"
			args = append(args, opts.Until.Unix())
		}
		if opts.Search != "" {
			query += " AND (a.title LIKE ? OR a.content LIKE ?)"
			pattern := "%" + opts.Search + "%"
			args = append(args, pattern, pattern)
		}
	}
	query += " ORDER BY a.last_seen DESC"
	if opts != nil && opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to list articles", err)
	}
	defer rows.Close()

	var articles []*models.Article
	for rows.Next() {
		article, err := s.scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, article := range articles {
		links, err := s.GetLinks(ctx, article.ID)
		if err != nil {
			return nil, err
		}
		article.Categories = links
	}
	return articles, nil
}

// DeleteArticle removes an article; links cascade
func (s *ArticleStorage) DeleteArticle(ctx context.Context, id string) error {
	result, err := s.db.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return common.WrapError(common.KindDatabase, "failed to delete article", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return common.Errorf(common.KindNotFound, "article %s not found", id)
	}
	return nil
}

// CountArticles counts all articles
func (s *ArticleStorage) CountArticles(ctx context.Context) (int, error) {
	var count int
	if err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count); err != nil {
		return 0, common.WrapError(common.KindDatabase, "failed to count articles", err)
	}
	return count, nil
}

// GetArticleStats aggregates article metrics for the stats endpoint
func (s *ArticleStorage) GetArticleStats(ctx context.Context) (*models.ArticleStats, error) {
	now := time.Now()
	stats := &models.ArticleStats{
		CountsByCategory: make(map[string]int),
	}

	query := `
		SELECT
			COUNT(*),
			SUM(CASE WHEN last_seen >= ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN last_seen >= ? THEN 1 ELSE 0 END),
			COALESCE(AVG(relevance_score), 0),
			SUM(CASE WHEN image_url IS NOT NULL THEN 1 ELSE 0 END)
		FROM articles
	`
	var last24h, last7d, withImages sql.NullInt64
	err := s.db.db.QueryRowContext(ctx, query,
		now.Add(-24*time.Hour).Unix(),
		now.Add(-7*24*time.Hour).Unix(),
	).Scan(&stats.TotalArticles, &last24h, &last7d, &stats.AverageRelevance, &withImages)
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to get article stats", err)
	}
	stats.ArticlesLast24h = int(last24h.Int64)
	stats.ArticlesLast7d = int(last7d.Int64)
	stats.ArticlesWithImages = int(withImages.Int64)

	rows, err := s.db.db.QueryContext(ctx, `
		SELECT c.name, COUNT(*)
		FROM article_categories ac
		JOIN categories c ON c.id = ac.category_id
		GROUP BY c.name
	`)
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to get category counts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, common.WrapError(common.KindDatabase, "failed to scan category count", err)
		}
		stats.CountsByCategory[name] = count
	}
	return stats, rows.Err()
}

// GetLinks returns an article's category links ordered by relevance (high
// first) then category name.
func (s *ArticleStorage) GetLinks(ctx context.Context, articleID string) ([]models.CategoryLink, error) {
	query := `
		SELECT ac.category_id, c.name, ac.relevance_score
		FROM article_categories ac
		JOIN categories c ON c.id = ac.category_id
		WHERE ac.article_id = ?
		ORDER BY ac.relevance_score DESC, c.name ASC
	`
	rows, err := s.db.db.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to query article links", err)
	}
	defer rows.Close()

	var links []models.CategoryLink
	for rows.Next() {
		var link models.CategoryLink
		if err := rows.Scan(&link.CategoryID, &link.CategoryName, &link.RelevanceScore); err != nil {
			return nil, common.WrapError(common.KindDatabase, "failed to scan article link", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// UnlinkCategory removes all links for a category, returning the count
func (s *ArticleStorage) UnlinkCategory(ctx context.Context, categoryID string) (int, error) {
	result, err := s.db.db.ExecContext(ctx,
		`DELETE FROM article_categories WHERE category_id = ?`, categoryID)
	if err != nil {
		return 0, common.WrapError(common.KindDatabase, "failed to unlink category", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// DetachJob clears crawl_job_id on articles tracked by the job
func (s *ArticleStorage) DetachJob(ctx context.Context, jobID string) (int, error) {
	result, err := s.db.db.ExecContext(ctx,
		`UPDATE articles SET crawl_job_id = NULL WHERE crawl_job_id = ?`, jobID)
	if err != nil {
		return 0, common.WrapError(common.KindDatabase, "failed to detach job from articles", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// DeleteArticlesForJob removes articles tracked solely by the job that hold
// no category links. Linked articles survive job deletion.
func (s *ArticleStorage) DeleteArticlesForJob(ctx context.Context, jobID string) (int, error) {
	query := `
		DELETE FROM articles
		WHERE crawl_job_id = ?
		  AND id NOT IN (SELECT article_id FROM article_categories)
	`
	result, err := s.db.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return 0, common.WrapError(common.KindDatabase, "failed to delete job articles", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// CountArticlesForJob counts articles tracked by the job
func (s *ArticleStorage) CountArticlesForJob(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE crawl_job_id = ?`, jobID).Scan(&count)
	if err != nil {
		return 0, common.WrapError(common.KindDatabase, "failed to count job articles", err)
	}
	return count, nil
}

func (s *ArticleStorage) scanArticle(row rowScanner) (*models.Article, error) {
	var (
		article         models.Article
		content         sql.NullString
		author          sql.NullString
		publishDate     sql.NullInt64
		imageURL        sql.NullString
		contentHash     sql.NullString
		keywordsMatched sql.NullString
		lastSeen        int64
		crawlJobID      sql.NullString
		createdAt       int64
	)

	err := row.Scan(
		&article.ID,
		&article.Title,
		&content,
		&author,
		&publishDate,
		&imageURL,
		&article.SourceURL,
		&article.URLHash,
		&contentHash,
		&keywordsMatched,
		&article.RelevanceScore,
		&lastSeen,
		&crawlJobID,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to scan article", err)
	}

	article.Content = content.String
	article.Author = author.String
	if publishDate.Valid {
		article.PublishDate = unixToTime(publishDate.Int64)
	}
	article.ImageURL = imageURL.String
	article.ContentHash = contentHash.String
	if article.KeywordsMatched, err = unmarshalStrings(keywordsMatched); err != nil {
		return nil, fmt.Errorf("failed to parse matched keywords: %w", err)
	}
	article.LastSeen = unixToTime(lastSeen)
	article.CrawlJobID = crawlJobID.String
	article.CreatedAt = unixToTime(createdAt)

	return &article, nil
}

// mergeKeywords unions two keyword lists preserving first-seen order
func mergeKeywords(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	result := make([]string, 0, len(existing)+len(incoming))
	for _, kw := range existing {
		if !seen[kw] {
			seen[kw] = true
			result = append(result, kw)
		}
	}
	for _, kw := range incoming {
		if !seen[kw] {
			seen[kw] = true
			result = append(result, kw)
		}
	}
	return result
}
