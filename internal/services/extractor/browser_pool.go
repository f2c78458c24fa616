package extractor

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// BrowserPool manages headless browser contexts for page extraction.
// Browsers are shared round-robin; a tab semaphore caps total in-flight
// extractions at browsers x tabs.
type BrowserPool struct {
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	tabSlots         chan struct{}
	mu               sync.Mutex
	currentIndex     int
	userAgent        string
	logger           arbor.ILogger
	initialized      bool
}

// NewBrowserPool creates an uninitialized pool
func NewBrowserPool(logger arbor.ILogger, browsers, tabsPerBrowser int, userAgent string) *BrowserPool {
	if browsers <= 0 {
		browsers = 1
	}
	if tabsPerBrowser <= 0 {
		tabsPerBrowser = 1
	}
	return &BrowserPool{
		tabSlots:  make(chan struct{}, browsers*tabsPerBrowser),
		userAgent: userAgent,
		logger:    logger,
	}
}

// Init launches the browser instances. Partial startup is tolerated as long
// as at least one browser comes up.
func (p *BrowserPool) Init(count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("browser pool already initialized")
	}
	if count <= 0 {
		return fmt.Errorf("browser count must be positive, got %d", count)
	}

	var lastErr error
	for i := 0; i < count; i++ {
		if err := p.launchBrowser(); err != nil {
			lastErr = err
			p.logger.Warn().Err(err).Int("browser_index", i).Msg("Failed to launch browser instance")
			continue
		}
	}

	if len(p.browsers) == 0 {
		p.cleanup()
		return fmt.Errorf("failed to launch any browser instance: %w", lastErr)
	}

	p.initialized = true
	p.logger.Info().
		Int("browsers", len(p.browsers)).
		Int("tab_slots", cap(p.tabSlots)).
		Msg("Browser pool initialized")
	return nil
}

func (p *BrowserPool) launchBrowser() error {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(p.userAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	p.browsers = append(p.browsers, browserCtx)
	p.browserCancels = append(p.browserCancels, browserCancel)
	p.allocatorCancels = append(p.allocatorCancels, allocatorCancel)
	return nil
}

// Acquire blocks for a tab slot, then returns a browser context and a release
// function. Release must be called when extraction finishes.
func (p *BrowserPool) Acquire(ctx context.Context) (context.Context, func(), error) {
	p.mu.Lock()
	if !p.initialized || len(p.browsers) == 0 {
		p.mu.Unlock()
		return nil, nil, fmt.Errorf("browser pool not initialized")
	}
	index := p.currentIndex % len(p.browsers)
	p.currentIndex = (p.currentIndex + 1) % len(p.browsers)
	browserCtx := p.browsers[index]
	p.mu.Unlock()

	select {
	case p.tabSlots <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	release := func() { <-p.tabSlots }
	return browserCtx, release, nil
}

// Capacity returns the maximum in-flight extractions
func (p *BrowserPool) Capacity() int {
	return cap(p.tabSlots)
}

// Shutdown cancels all browser instances
func (p *BrowserPool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	p.cleanup()
	p.initialized = false
	p.logger.Info().Msg("Browser pool shut down")
}

func (p *BrowserPool) cleanup() {
	for _, cancel := range p.browserCancels {
		cancel()
	}
	for _, cancel := range p.allocatorCancels {
		cancel()
	}
	p.browsers = nil
	p.browserCancels = nil
	p.allocatorCancels = nil
	p.currentIndex = 0
}
