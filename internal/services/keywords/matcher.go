package keywords

import (
	"strings"
)

// Relevance weights: half for a title match, half for a content match
const (
	titleWeight   = 0.5
	contentWeight = 0.5
)

// Match returns the keywords found in the article text, case-insensitive
// substring over title and content, in keyword-list order without duplicates.
func Match(keywords []string, title, content string) []string {
	haystack := strings.ToLower(title + " " + content)

	var matched []string
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" || seen[needle] {
			continue
		}
		if strings.Contains(haystack, needle) {
			seen[needle] = true
			matched = append(matched, kw)
		}
	}
	return matched
}

// MatchesAny reports whether any keyword appears in the text
func MatchesAny(keywords []string, title, content string) bool {
	haystack := strings.ToLower(title + " " + content)
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle != "" && strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// Relevance scores matched keywords against the article: 0.5 when any
// matched keyword appears in the title, 0.5 when any appears in the content.
// Possible values are exactly 0.0, 0.5 and 1.0.
func Relevance(matched []string, title, content string) float64 {
	if len(matched) == 0 {
		return 0.0
	}

	titleLower := strings.ToLower(title)
	contentLower := strings.ToLower(content)

	score := 0.0
	for _, kw := range matched {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		if strings.Contains(titleLower, needle) {
			score += titleWeight
			break
		}
	}
	for _, kw := range matched {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		if strings.Contains(contentLower, needle) {
			score += contentWeight
			break
		}
	}
	return score
}
