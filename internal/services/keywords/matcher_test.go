package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		title    string
		content  string
		expected []string
	}{
		{
			name:     "case-insensitive match in title and content",
			keywords: []string{"python", "ai"},
			title:    "Python AI breakthrough",
			content:  "Researchers built a new framework in Python.",
			expected: []string{"python", "ai"},
		},
		{
			name:     "preserves keyword order",
			keywords: []string{"zebra", "apple"},
			title:    "apple and zebra",
			content:  "",
			expected: []string{"zebra", "apple"},
		},
		{
			name:     "no matches",
			keywords: []string{"rust"},
			title:    "Go generics",
			content:  "Nothing relevant here.",
			expected: nil,
		},
		{
			name:     "zero keywords returns empty",
			keywords: nil,
			title:    "anything",
			content:  "anything",
			expected: nil,
		},
		{
			name:     "duplicate keywords matched once",
			keywords: []string{"go", "Go"},
			title:    "Go 1.25 released",
			content:  "",
			expected: []string{"go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Match(tt.keywords, tt.title, tt.content))
		})
	}
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		title    string
		content  string
		expected float64
	}{
		{
			name:     "title and content match scores 1.0",
			keywords: []string{"python"},
			title:    "Python news",
			content:  "All about python releases.",
			expected: 1.0,
		},
		{
			name:     "content-only match scores 0.5",
			keywords: []string{"blockchain"},
			title:    "Fintech update",
			content:  "New blockchain protocol released.",
			expected: 0.5,
		},
		{
			name:     "title-only match scores 0.5",
			keywords: []string{"quantum"},
			title:    "Quantum leap",
			content:  "A story about computing.",
			expected: 0.5,
		},
		{
			name:     "different keywords covering title and content score 1.0",
			keywords: []string{"python", "ai"},
			title:    "AI special",
			content:  "Deep dive into python tooling.",
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched := Match(tt.keywords, tt.title, tt.content)
			assert.Equal(t, tt.expected, Relevance(matched, tt.title, tt.content))
		})
	}
}

func TestRelevance_NoMatch(t *testing.T) {
	assert.Equal(t, 0.0, Relevance(nil, "title", "content"))
}

func TestRelevance_Range(t *testing.T) {
	// Relevance only ever takes the values 0.0, 0.5 and 1.0
	cases := []struct{ title, content string }{
		{"go release", "go release"},
		{"go release", "nothing"},
		{"nothing", "go release"},
		{"nothing", "nothing"},
	}
	for _, c := range cases {
		matched := Match([]string{"go"}, c.title, c.content)
		score := Relevance(matched, c.title, c.content)
		assert.Contains(t, []float64{0.0, 0.5, 1.0}, score)
	}
}
