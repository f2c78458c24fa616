package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// SearchClient talks to the news search provider over HTTP
type SearchClient struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	userAgent string
	logger    arbor.ILogger
}

// NewSearchClient creates a provider client from configuration
func NewSearchClient(logger arbor.ILogger, config *common.ExtractorConfig) *SearchClient {
	timeout := time.Duration(config.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SearchClient{
		client:    &http.Client{Timeout: timeout},
		baseURL:   config.ProviderURL,
		apiKey:    config.APIKey,
		userAgent: config.UserAgent,
		logger:    logger,
	}
}

// searchResponse is the provider's result envelope
type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	Content     string `json:"content"`
	Author      string `json:"author"`
	PublishedAt string `json:"published_at"`
	ImageURL    string `json:"image_url"`
	URL         string `json:"url"`
}

// Search queries the provider. A 429 response is surfaced as a rate-limit
// error carrying the provider's Retry-After hint.
func (c *SearchClient) Search(ctx context.Context, req *interfaces.SearchRequest) ([]*models.ArticleCandidate, error) {
	if c.baseURL == "" {
		return nil, common.NewError(common.KindExternalService, "search provider URL is not configured")
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, common.WrapError(common.KindExternalService, "invalid provider URL", err)
	}

	params := endpoint.Query()
	params.Set("q", req.Query)
	if req.Language != "" {
		params.Set("language", req.Language)
	}
	if req.Country != "" {
		params.Set("country", req.Country)
	}
	if !req.StartDate.IsZero() {
		params.Set("from", req.StartDate.UTC().Format(time.RFC3339))
	}
	if !req.EndDate.IsZero() {
		params.Set("to", req.EndDate.UTC().Format(time.RFC3339))
	}
	if req.MaxResults > 0 {
		params.Set("max_results", strconv.Itoa(req.MaxResults))
	}
	endpoint.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, common.WrapError(common.KindExternalService, "failed to build provider request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, common.WrapError(common.KindExternalService, "provider request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.Warn().Dur("retry_after", retryAfter).Msg("Search provider rate limited")
		return nil, &common.Error{
			Kind:       common.KindRateLimit,
			Message:    "search provider rate limited",
			RetryAfter: retryAfter,
		}
	case resp.StatusCode >= 500:
		return nil, common.Errorf(common.KindExternalService, "provider returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, common.Errorf(common.KindApplication, "provider rejected request with status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, common.WrapError(common.KindExternalService, "failed to decode provider response", err)
	}

	candidates := make([]*models.ArticleCandidate, 0, len(body.Results))
	for _, r := range body.Results {
		if r.URL == "" || r.Title == "" {
			continue
		}
		content := r.Content
		if content == "" {
			content = r.Snippet
		}
		candidate := &models.ArticleCandidate{
			Title:     r.Title,
			Content:   content,
			Author:    r.Author,
			ImageURL:  r.ImageURL,
			SourceURL: r.URL,
		}
		if r.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, r.PublishedAt); err == nil {
				candidate.PublishDate = t.UTC()
			}
		}
		candidates = append(candidates, candidate)
	}

	c.logger.Debug().
		Int("results", len(candidates)).
		Str("query", req.Query).
		Msg("Provider search completed")
	return candidates, nil
}

// parseRetryAfter reads a Retry-After header in seconds, defaulting to 60s
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 60 * time.Second
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 60 * time.Second
}

func (c *SearchClient) String() string {
	return fmt.Sprintf("SearchClient(%s)", c.baseURL)
}
