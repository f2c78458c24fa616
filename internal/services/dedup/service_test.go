package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
)

func setupService(t *testing.T) (*Service, func()) {
	service, err := NewService(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	return service, func() { service.Close() }
}

func TestService_Observe(t *testing.T) {
	service, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	contentHash := ContentHash("The article body.")

	require.NoError(t, service.Observe(ctx, URLHash("https://example.com/a"), contentHash))

	// Same content under a second URL is recorded, not merged
	require.NoError(t, service.Observe(ctx, URLHash("https://example.com/b"), contentHash))

	// Repeat sightings of a known pair are idempotent
	require.NoError(t, service.Observe(ctx, URLHash("https://example.com/a"), contentHash))
}

func TestService_Observe_EmptyHashesIgnored(t *testing.T) {
	service, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	assert.NoError(t, service.Observe(ctx, "", ContentHash("body")))
	assert.NoError(t, service.Observe(ctx, URLHash("https://example.com"), ""))
}

func TestService_Hashing(t *testing.T) {
	service, cleanup := setupService(t)
	defer cleanup()

	assert.Equal(t, URLHash("https://example.com"), service.URLHash("https://example.com"))
	assert.Equal(t, ContentHash("body"), service.ContentHash("body"))
}
