package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// URLHash returns the SHA-256 hex digest of the trimmed URL. This is the
// article identity key: byte-identical URLs hash identically.
func URLHash(url string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}

// ContentHash returns the SHA-256 hex digest of the content, or empty for
// empty content.
func ContentHash(content string) string {
	if content == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
