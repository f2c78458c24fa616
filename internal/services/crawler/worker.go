package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/ternarybob/nuntius/internal/services/keywords"
	"github.com/ternarybob/nuntius/internal/services/linker"
)

// Worker executes one crawl job end-to-end: query build, provider search,
// bounded extraction, dedup, keyword matching and multi-category linking.
type Worker struct {
	storage   interfaces.StorageManager
	extractor interfaces.Extractor
	deduper   interfaces.Deduper
	linker    *linker.Linker
	config    *common.JobsConfig
	logger    arbor.ILogger
}

// NewWorker creates a crawl worker
func NewWorker(storage interfaces.StorageManager, extractor interfaces.Extractor, deduper interfaces.Deduper, lk *linker.Linker, config *common.JobsConfig, logger arbor.ILogger) *Worker {
	return &Worker{
		storage:   storage,
		extractor: extractor,
		deduper:   deduper,
		linker:    lk,
		config:    config,
		logger:    logger,
	}
}

// Execute runs a job that has already been transitioned to running by the
// dispatcher. The context carries the hard execution timeout; cancellation is
// observed between candidates.
func (w *Worker) Execute(ctx context.Context, job *models.CrawlJob) (*interfaces.CrawlResult, error) {
	log := w.logger.
		WithCorrelationId(job.CorrelationID)

	// Skipped jobs complete cleanly with zero counts
	category, err := w.storage.CategoryStorage().GetCategory(ctx, job.CategoryID)
	if err != nil {
		if common.KindOf(err) == common.KindNotFound {
			log.Warn().Str("job_id", job.ID).Str("category_id", job.CategoryID).Msg("Category missing, skipping job")
			return &interfaces.CrawlResult{}, nil
		}
		return nil, err
	}
	if !category.IsActive {
		log.Info().Str("job_id", job.ID).Str("category_id", category.ID).Msg("Category inactive, skipping job")
		return &interfaces.CrawlResult{}, nil
	}

	maxResults := w.effectiveMaxResults(job)
	if maxResults == 0 {
		return &interfaces.CrawlResult{}, nil
	}

	startDate, endDate, err := w.effectiveWindow(job, category)
	if err != nil {
		return nil, err
	}

	query, err := keywords.BuildQueryWithExclusions(category.Keywords, category.ExcludeKeywords)
	if err != nil {
		return nil, err
	}

	candidates, err := w.extractor.Search(ctx, &interfaces.SearchRequest{
		Query:      query,
		Language:   category.Language,
		Country:    category.Country,
		StartDate:  startDate,
		EndDate:    endDate,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	log.Info().
		Str("job_id", job.ID).
		Str("category", category.Name).
		Int("candidates", len(candidates)).
		Msg("Provider search returned candidates")

	extracted := w.extractAll(ctx, log, candidates)
	if err := ctx.Err(); err != nil {
		return nil, cancellationError(err)
	}

	// Other active categories for cross-linking; the job's own category is
	// always the primary link.
	allActive, err := w.storage.CategoryStorage().ListCategories(ctx, &interfaces.CategoryListOptions{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	others := make([]*models.Category, 0, len(allActive))
	for _, c := range allActive {
		if c.ID != category.ID {
			others = append(others, c)
		}
	}

	result := &interfaces.CrawlResult{}
	for _, candidate := range extracted {
		if err := ctx.Err(); err != nil {
			return nil, cancellationError(err)
		}
		if candidate == nil || candidate.Title == "" || candidate.SourceURL == "" {
			result.Skipped++
			continue
		}
		result.ArticlesFound++

		if err := w.saveCandidate(ctx, job, category, others, candidate); err != nil {
			log.Warn().Err(err).Str("url", candidate.SourceURL).Msg("Failed to save candidate")
			if isJobLevel(err) {
				return nil, err
			}
			continue
		}
		result.ArticlesSaved++
	}

	log.Info().
		Str("job_id", job.ID).
		Int("found", result.ArticlesFound).
		Int("saved", result.ArticlesSaved).
		Int("skipped", result.Skipped).
		Msg("Crawl completed")
	return result, nil
}

// extractAll runs page extraction over candidates with bounded concurrency.
// Failed extractions fall back to the raw candidate when it still carries a
// title and URL, and are dropped otherwise.
func (w *Worker) extractAll(ctx context.Context, log arbor.ILogger, candidates []*models.ArticleCandidate) []*models.ArticleCandidate {
	limit := w.extractor.Concurrency()
	if limit <= 0 {
		limit = 1
	}

	results := make([]*models.ArticleCandidate, len(candidates))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, candidate *models.ArticleCandidate) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			enriched, err := w.extractor.Extract(ctx, candidate)
			if err != nil {
				log.Debug().Err(err).Str("url", candidate.SourceURL).Msg("Extraction failed, keeping raw candidate")
				if candidate.Title != "" && candidate.SourceURL != "" {
					results[i] = candidate
				}
				return
			}
			results[i] = enriched
		}(i, candidate)
	}
	wg.Wait()
	return results
}

// saveCandidate matches, links and upserts one extracted candidate
func (w *Worker) saveCandidate(ctx context.Context, job *models.CrawlJob, primary *models.Category, others []*models.Category, candidate *models.ArticleCandidate) error {
	matched := keywords.Match(primary.Keywords, candidate.Title, candidate.Content)
	relevance := keywords.Relevance(matched, candidate.Title, candidate.Content)

	links := []models.CategoryLink{{
		CategoryID:     primary.ID,
		CategoryName:   primary.Name,
		RelevanceScore: relevance,
	}}
	links = append(links, w.linker.FindMatches(candidate, others)...)

	now := time.Now().UTC()
	urlHash := w.deduper.URLHash(candidate.SourceURL)
	contentHash := w.deduper.ContentHash(candidate.Content)

	article := &models.Article{
		ID:              common.NewArticleID(),
		Title:           candidate.Title,
		Content:         candidate.Content,
		Author:          candidate.Author,
		PublishDate:     candidate.PublishDate,
		ImageURL:        candidate.ImageURL,
		SourceURL:       candidate.SourceURL,
		URLHash:         urlHash,
		ContentHash:     contentHash,
		KeywordsMatched: matched,
		RelevanceScore:  relevance,
		LastSeen:        now,
		CrawlJobID:      job.ID,
		CreatedAt:       now,
	}

	if _, _, err := w.storage.ArticleStorage().UpsertArticleWithLinks(ctx, article, links); err != nil {
		return err
	}

	if err := w.deduper.Observe(ctx, urlHash, contentHash); err != nil {
		// Observability only, never fails the candidate
		w.logger.Debug().Err(err).Msg("Fingerprint observation failed")
	}
	return nil
}

// effectiveMaxResults resolves the candidate cap, clamped to the hard limit.
// An unset job cap falls back to the configured default; an explicit zero is
// honored and the crawl finds nothing.
func (w *Worker) effectiveMaxResults(job *models.CrawlJob) int {
	max := w.config.DefaultMaxResults
	if job.MaxResults != nil {
		max = *job.MaxResults
	}
	if max < 0 {
		return 0
	}
	if max > w.config.MaxResultsLimit {
		max = w.config.MaxResultsLimit
	}
	return max
}

// effectiveWindow intersects the job's explicit date window with the
// category's crawl period relative to now.
func (w *Worker) effectiveWindow(job *models.CrawlJob, category *models.Category) (time.Time, time.Time, error) {
	start, end := job.StartDate, job.EndDate

	if category.CrawlPeriod != "" {
		period, err := common.CrawlPeriodDuration(category.CrawlPeriod)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		periodStart := time.Now().UTC().Add(-period)
		if start.IsZero() || periodStart.After(start) {
			start = periodStart
		}
	}

	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return time.Time{}, time.Time{}, common.NewError(common.KindValidation, "effective date window is empty")
	}
	return start, end, nil
}

// isJobLevel reports whether an error should abort the whole job rather than
// just the current candidate
func isJobLevel(err error) bool {
	switch common.KindOf(err) {
	case common.KindRateLimit, common.KindDatabase:
		return true
	}
	return false
}

// cancellationError maps a context error to the job failure taxonomy
func cancellationError(err error) error {
	if err == context.DeadlineExceeded {
		return common.NewError(common.KindTimeout, "timeout")
	}
	return common.NewError(common.KindTimeout, "cancelled")
}

var _ interfaces.CrawlWorker = (*Worker)(nil)
