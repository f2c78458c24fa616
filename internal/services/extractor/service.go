package extractor

import (
	"context"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// Service implements the extraction adapter: provider search plus headless
// page rendering for candidates that arrive without content. Rendering in a
// real browser also resolves provider redirect URLs to their final location.
type Service struct {
	client    *SearchClient
	pool      *BrowserPool
	converter *md.Converter
	timeout   time.Duration
	logger    arbor.ILogger
}

// NewService creates the extractor. The browser pool may be nil for
// search-only operation (candidates keep their snippet content).
func NewService(logger arbor.ILogger, config *common.ExtractorConfig) (*Service, error) {
	pool := NewBrowserPool(logger, config.Browsers, config.TabsPerBrowser, config.UserAgent)
	if err := pool.Init(config.Browsers); err != nil {
		// Headless Chrome may be unavailable in constrained environments.
		// Degrade to snippet-only extraction rather than failing startup.
		logger.Warn().Err(err).Msg("Browser pool unavailable, falling back to snippet extraction")
		pool = nil
	}

	converter := md.NewConverter("", true, nil)

	timeout := time.Duration(config.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Service{
		client:    NewSearchClient(logger, config),
		pool:      pool,
		converter: converter,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// Search queries the provider for candidates
func (s *Service) Search(ctx context.Context, req *interfaces.SearchRequest) ([]*models.ArticleCandidate, error) {
	return s.client.Search(ctx, req)
}

// Extract enriches a candidate by rendering its page and converting the
// article body to markdown. A candidate that already has content, or a pool
// that is unavailable, passes through unchanged.
func (s *Service) Extract(ctx context.Context, candidate *models.ArticleCandidate) (*models.ArticleCandidate, error) {
	if candidate.SourceURL == "" || candidate.Title == "" {
		return nil, common.NewError(common.KindValidation, "candidate requires title and source URL")
	}
	if candidate.Content != "" || s.pool == nil {
		return candidate, nil
	}

	browserCtx, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, common.WrapError(common.KindExternalService, "failed to acquire browser", err)
	}
	defer release()

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, s.timeout)
	defer runCancel()

	var html, finalURL string
	err = chromedp.Run(runCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en"}),
		chromedp.Navigate(candidate.SourceURL),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, common.Errorf(common.KindExternalService, "page render timed out for %s", candidate.SourceURL)
		}
		return nil, common.WrapError(common.KindExternalService, "page render failed", err)
	}

	enriched := *candidate
	if finalURL != "" && finalURL != "about:blank" {
		enriched.SourceURL = finalURL
	}
	s.fillFromHTML(&enriched, html)
	return &enriched, nil
}

// fillFromHTML parses the rendered page and backfills missing fields
func (s *Service) fillFromHTML(candidate *models.ArticleCandidate, html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.logger.Debug().Err(err).Str("url", candidate.SourceURL).Msg("Failed to parse rendered page")
		return
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	body := doc.Find("article")
	if body.Length() == 0 {
		body = doc.Find("main")
	}
	if body.Length() == 0 {
		body = doc.Find("body")
	}
	if bodyHTML, err := body.Html(); err == nil && bodyHTML != "" {
		if markdown, err := s.converter.ConvertString(bodyHTML); err == nil {
			candidate.Content = strings.TrimSpace(markdown)
		}
	}

	if candidate.Author == "" {
		if author, ok := doc.Find(`meta[name="author"]`).Attr("content"); ok {
			candidate.Author = strings.TrimSpace(author)
		}
	}
	if candidate.ImageURL == "" {
		if image, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
			candidate.ImageURL = strings.TrimSpace(image)
		}
	}
	if candidate.PublishDate.IsZero() {
		if published, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(published)); err == nil {
				candidate.PublishDate = t.UTC()
			}
		}
	}
}

// Concurrency returns the in-flight extraction cap
func (s *Service) Concurrency() int {
	if s.pool == nil {
		return 1
	}
	return s.pool.Capacity()
}

// Close shuts down the browser pool
func (s *Service) Close() {
	if s.pool != nil {
		s.pool.Shutdown()
	}
}

var _ interfaces.Extractor = (*Service)(nil)
