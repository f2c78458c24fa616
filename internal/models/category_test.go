package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/nuntius/internal/common"
)

func testLimits() common.CategoriesConfig {
	return common.CategoriesConfig{
		MaxKeywords:      20,
		MaxKeywordLength: 100,
		MaxNameLength:    255,
	}
}

func TestCategoryNormalize(t *testing.T) {
	category := &Category{
		Name:            "  Tech  ",
		Keywords:        []string{" Python ", "python", "", "AI"},
		ExcludeKeywords: []string{"crypto", " Crypto "},
	}

	category.Normalize()

	assert.Equal(t, "Tech", category.Name)
	assert.Equal(t, []string{"Python", "AI"}, category.Keywords)
	assert.Equal(t, []string{"crypto"}, category.ExcludeKeywords)
}

func TestCategoryValidate(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		wantErr  bool
	}{
		{
			name:     "valid minimal",
			category: Category{Name: "Tech", Keywords: []string{"ai"}, IsActive: true},
		},
		{
			name:     "missing name",
			category: Category{Keywords: []string{"ai"}},
			wantErr:  true,
		},
		{
			name:     "missing keywords",
			category: Category{Name: "Tech"},
			wantErr:  true,
		},
		{
			name: "too many keywords",
			category: Category{
				Name:     "Tech",
				Keywords: make([]string, 21),
			},
			wantErr: true,
		},
		{
			name: "keyword too long",
			category: Category{
				Name:     "Tech",
				Keywords: []string{strings.Repeat("x", 101)},
			},
			wantErr: true,
		},
		{
			name: "name too long",
			category: Category{
				Name:     strings.Repeat("x", 256),
				Keywords: []string{"ai"},
			},
			wantErr: true,
		},
		{
			name: "valid crawl period",
			category: Category{
				Name:        "Tech",
				Keywords:    []string{"ai"},
				CrawlPeriod: "7d",
			},
		},
		{
			name: "invalid crawl period",
			category: Category{
				Name:        "Tech",
				Keywords:    []string{"ai"},
				CrawlPeriod: "7days",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Fill placeholder keyword slices so only the tested bound trips
			for i, kw := range tt.category.Keywords {
				if kw == "" {
					tt.category.Keywords[i] = "kw"
				}
			}
			err := tt.category.Validate(testLimits())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCategoryValidate_Schedule(t *testing.T) {
	category := Category{
		Name:                    "Tech",
		Keywords:                []string{"ai"},
		IsActive:                true,
		ScheduleEnabled:         true,
		ScheduleIntervalMinutes: 60,
	}
	assert.NoError(t, category.Validate(testLimits()))

	// Interval outside the fixed set
	category.ScheduleIntervalMinutes = 45
	assert.Error(t, category.Validate(testLimits()))

	// Schedule on an inactive category
	category.ScheduleIntervalMinutes = 60
	category.IsActive = false
	err := category.Validate(testLimits())
	assert.Error(t, err)
	assert.Equal(t, common.KindStateViolation, common.KindOf(err))
}

func TestIsValidScheduleInterval(t *testing.T) {
	for _, valid := range []int{1, 30, 60, 1440} {
		assert.True(t, IsValidScheduleInterval(valid), valid)
	}
	for _, invalid := range []int{0, 5, 15, 45, 120, -1} {
		assert.False(t, IsValidScheduleInterval(invalid), invalid)
	}
}
