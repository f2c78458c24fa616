package common

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// crawlPeriodPattern validates the {count}{unit} recency window format,
// e.g. "24h", "7d", "2w", "1m", "1y".
var crawlPeriodPattern = regexp.MustCompile(`^[0-9]+[hdwmy]$`)

// ValidateCrawlPeriod checks a crawl period string. Empty is valid (no cap).
func ValidateCrawlPeriod(period string) error {
	if period == "" {
		return nil
	}
	if !crawlPeriodPattern.MatchString(period) {
		return Errorf(KindValidation, "invalid crawl_period %q: must match ^[0-9]+[hdwmy]$", period)
	}
	count, _ := strconv.Atoi(period[:len(period)-1])
	if count <= 0 {
		return Errorf(KindValidation, "invalid crawl_period %q: count must be positive", period)
	}
	return nil
}

// CrawlPeriodDuration converts a crawl period string to a duration relative
// to now. Months are treated as 30 days and years as 365 days.
func CrawlPeriodDuration(period string) (time.Duration, error) {
	if err := ValidateCrawlPeriod(period); err != nil {
		return 0, err
	}
	if period == "" {
		return 0, nil
	}

	count, err := strconv.Atoi(period[:len(period)-1])
	if err != nil {
		return 0, fmt.Errorf("failed to parse crawl_period count: %w", err)
	}

	unit := period[len(period)-1]
	switch unit {
	case 'h':
		return time.Duration(count) * time.Hour, nil
	case 'd':
		return time.Duration(count) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(count) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(count) * 30 * 24 * time.Hour, nil
	case 'y':
		return time.Duration(count) * 365 * 24 * time.Hour, nil
	}
	return 0, Errorf(KindValidation, "invalid crawl_period unit %q", string(unit))
}
