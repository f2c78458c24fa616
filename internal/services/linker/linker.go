package linker

import (
	"sort"

	"github.com/ternarybob/nuntius/internal/models"
	"github.com/ternarybob/nuntius/internal/services/keywords"
)

// DefaultMinRelevance is the link inclusion threshold
const DefaultMinRelevance = 0.3

// Linker scores an article against the active category set
type Linker struct {
	minRelevance float64
}

// New creates a linker with the given threshold; zero uses the default
func New(minRelevance float64) *Linker {
	if minRelevance <= 0 {
		minRelevance = DefaultMinRelevance
	}
	return &Linker{minRelevance: minRelevance}
}

// FindMatches returns the category links an article qualifies for, sorted by
// relevance descending with ties broken by category name ascending.
//
// A category is skipped when it is inactive, when any of its exclude keywords
// appears in the article text, or when no keyword matches. Exclusion wins
// over any match.
func (l *Linker) FindMatches(article *models.ArticleCandidate, categories []*models.Category) []models.CategoryLink {
	var links []models.CategoryLink

	for _, category := range categories {
		if !category.IsActive {
			continue
		}
		if keywords.MatchesAny(category.ExcludeKeywords, article.Title, article.Content) {
			continue
		}

		matched := keywords.Match(category.Keywords, article.Title, article.Content)
		if len(matched) == 0 {
			continue
		}

		relevance := keywords.Relevance(matched, article.Title, article.Content)
		if relevance < l.minRelevance {
			continue
		}

		links = append(links, models.CategoryLink{
			CategoryID:     category.ID,
			CategoryName:   category.Name,
			RelevanceScore: relevance,
		})
	}

	sort.SliceStable(links, func(i, j int) bool {
		if links[i].RelevanceScore != links[j].RelevanceScore {
			return links[i].RelevanceScore > links[j].RelevanceScore
		}
		return links[i].CategoryName < links[j].CategoryName
	})
	return links
}
