package models

import (
	"strings"
	"time"

	"github.com/ternarybob/nuntius/internal/common"
)

// ValidScheduleIntervals are the fixed schedule cadences in minutes
var ValidScheduleIntervals = []int{1, 30, 60, 1440}

// Category defines a named keyword search with optional schedule and
// crawl-period cap. Only active categories are crawled or linked against.
type Category struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Keywords        []string `json:"keywords"`
	ExcludeKeywords []string `json:"exclude_keywords,omitempty"`
	Language        string   `json:"language,omitempty"`
	Country         string   `json:"country,omitempty"`
	IsActive        bool     `json:"is_active"`

	// Schedule state. NextScheduledRunAt is set iff ScheduleEnabled.
	ScheduleEnabled         bool      `json:"schedule_enabled"`
	ScheduleIntervalMinutes int       `json:"schedule_interval_minutes,omitempty"`
	LastScheduledRunAt      time.Time `json:"last_scheduled_run_at,omitempty"`
	NextScheduledRunAt      time.Time `json:"next_scheduled_run_at,omitempty"`

	// CrawlPeriod caps result recency, format {count}{unit} with unit in
	// h/d/w/m/y. Empty means no cap.
	CrawlPeriod string `json:"crawl_period,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsValidScheduleInterval checks interval membership in the fixed set
func IsValidScheduleInterval(minutes int) bool {
	for _, v := range ValidScheduleIntervals {
		if v == minutes {
			return true
		}
	}
	return false
}

// Normalize trims the name and keyword lists and drops case-insensitive
// duplicate keywords, preserving first occurrence.
func (c *Category) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Keywords = normalizeKeywordList(c.Keywords)
	c.ExcludeKeywords = normalizeKeywordList(c.ExcludeKeywords)
}

// Validate enforces the category invariants against the configured limits
func (c *Category) Validate(limits common.CategoriesConfig) error {
	if c.Name == "" {
		return common.NewError(common.KindValidation, "category name is required")
	}
	if len(c.Name) > limits.MaxNameLength {
		return common.Errorf(common.KindValidation, "category name exceeds %d characters", limits.MaxNameLength)
	}
	if len(c.Keywords) == 0 {
		return common.NewError(common.KindValidation, "at least one keyword is required")
	}
	if len(c.Keywords) > limits.MaxKeywords {
		return common.Errorf(common.KindValidation, "at most %d keywords allowed", limits.MaxKeywords)
	}
	if len(c.ExcludeKeywords) > limits.MaxKeywords {
		return common.Errorf(common.KindValidation, "at most %d exclude keywords allowed", limits.MaxKeywords)
	}
	for _, kw := range append(append([]string{}, c.Keywords...), c.ExcludeKeywords...) {
		if kw == "" {
			return common.NewError(common.KindValidation, "keywords must be non-empty")
		}
		if len(kw) > limits.MaxKeywordLength {
			return common.Errorf(common.KindValidation, "keyword %q exceeds %d characters", kw, limits.MaxKeywordLength)
		}
	}
	if c.ScheduleEnabled {
		if !c.IsActive {
			return common.NewError(common.KindStateViolation, "schedule may only be enabled on an active category")
		}
		if !IsValidScheduleInterval(c.ScheduleIntervalMinutes) {
			return common.Errorf(common.KindValidation, "schedule_interval_minutes must be one of %v", ValidScheduleIntervals)
		}
	}
	if err := common.ValidateCrawlPeriod(c.CrawlPeriod); err != nil {
		return err
	}
	return nil
}

func normalizeKeywordList(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	result := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		trimmed := strings.TrimSpace(kw)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		result = append(result, trimmed)
	}
	return result
}
