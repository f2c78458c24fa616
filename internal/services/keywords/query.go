package keywords

import (
	"strings"

	"github.com/ternarybob/nuntius/internal/common"
)

// sanitizeKeyword strips characters outside the provider's safe set and
// collapses internal whitespace. Letters, digits, spaces, dots, underscores
// and hyphens survive.
func sanitizeKeyword(keyword string) string {
	var b strings.Builder
	for _, r := range keyword {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// sanitizeList cleans each keyword and drops case-insensitive duplicates,
// preserving first occurrence
func sanitizeList(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	result := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		clean := sanitizeKeyword(kw)
		if clean == "" {
			continue
		}
		lower := strings.ToLower(clean)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		result = append(result, clean)
	}
	return result
}

// BuildQuery renders keywords as a quoted OR expression for the search
// provider, e.g. `"climate change" OR "global warming"`. An empty keyword
// list is an error.
func BuildQuery(keywords []string) (string, error) {
	terms := sanitizeList(keywords)
	if len(terms) == 0 {
		return "", common.NewError(common.KindValidation, "cannot build query from empty keyword list")
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR "), nil
}

// BuildQueryWithExclusions renders the full provider query: the OR expression
// parenthesized when it has multiple terms, followed by negated exclusions,
// e.g. `("ai" OR "ml") -"crypto"`. A single keyword collapses the
// parentheses.
func BuildQueryWithExclusions(keywords, exclusions []string) (string, error) {
	base, err := BuildQuery(keywords)
	if err != nil {
		return "", err
	}

	if strings.Contains(base, " OR ") {
		base = "(" + base + ")"
	}

	for _, ex := range sanitizeList(exclusions) {
		base += ` -"` + ex + `"`
	}
	return base, nil
}
