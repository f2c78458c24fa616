package dedup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	badgerhold "github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
)

// Fingerprint records one content-hash observation. Content-hash collisions
// across different URLs are reported for observability but never merge
// articles.
type Fingerprint struct {
	ContentHash string `badgerhold:"key"`
	URLHashes   []string
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Service maintains the content-fingerprint index in an embedded Badger store
type Service struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewService opens the fingerprint index at the configured path
func NewService(logger arbor.ILogger, config *common.BadgerConfig) (*Service, error) {
	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create fingerprint directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Options = options.Options.WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open fingerprint store: %w", err)
	}

	logger.Info().Str("path", config.Path).Msg("Fingerprint index initialized")
	return &Service{store: store, logger: logger}, nil
}

// URLHash returns the article identity hash for a URL
func (s *Service) URLHash(url string) string {
	return URLHash(url)
}

// ContentHash returns the content hash, empty for empty content
func (s *Service) ContentHash(content string) string {
	return ContentHash(content)
}

// Observe records a (contentHash, urlHash) sighting. When the same content
// hash arrives under a second URL, the collision is logged and the URL is
// appended to the fingerprint record.
func (s *Service) Observe(ctx context.Context, urlHash, contentHash string) error {
	if contentHash == "" || urlHash == "" {
		return nil
	}

	now := time.Now().UTC()

	var fp Fingerprint
	err := s.store.Get(contentHash, &fp)
	if err == badgerhold.ErrNotFound {
		fp = Fingerprint{
			ContentHash: contentHash,
			URLHashes:   []string{urlHash},
			FirstSeen:   now,
			LastSeen:    now,
		}
		if err := s.store.Insert(contentHash, fp); err != nil && err != badgerhold.ErrKeyExists {
			return fmt.Errorf("failed to insert fingerprint: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read fingerprint: %w", err)
	}

	known := false
	for _, h := range fp.URLHashes {
		if h == urlHash {
			known = true
			break
		}
	}
	if !known {
		fp.URLHashes = append(fp.URLHashes, urlHash)
		s.logger.Info().
			Str("content_hash", contentHash).
			Int("url_count", len(fp.URLHashes)).
			Msg("Duplicate content observed under a new URL")
	}
	fp.LastSeen = now

	if err := s.store.Update(contentHash, fp); err != nil {
		return fmt.Errorf("failed to update fingerprint: %w", err)
	}
	return nil
}

// Close closes the fingerprint store
func (s *Service) Close() error {
	return s.store.Close()
}

// RunGC triggers a Badger value-log garbage collection pass
func (s *Service) RunGC() error {
	err := s.store.Badger().RunValueLogGC(0.5)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}

var _ interfaces.Deduper = (*Service)(nil)
