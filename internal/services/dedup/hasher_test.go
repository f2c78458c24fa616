package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLHash(t *testing.T) {
	a := URLHash("https://example.com/article")
	b := URLHash("https://example.com/article")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// Leading/trailing whitespace does not change identity
	assert.Equal(t, a, URLHash("  https://example.com/article  "))

	// Any other byte difference does
	assert.NotEqual(t, a, URLHash("https://example.com/article/"))
	assert.NotEqual(t, a, URLHash("https://example.com/Article"))
}

func TestContentHash(t *testing.T) {
	a := ContentHash("The quick brown fox.")
	assert.Len(t, a, 64)
	assert.Equal(t, a, ContentHash("The quick brown fox."))
	assert.NotEqual(t, a, ContentHash("The quick brown fox"))

	assert.Equal(t, "", ContentHash(""))
}
