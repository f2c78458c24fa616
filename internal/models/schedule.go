package models

import "time"

// ScanResult reports one schedule-scanner tick. Per-category failures are
// collected rather than aborting the tick.
type ScanResult struct {
	RanAt         time.Time `json:"ran_at"`
	DueCategories int       `json:"due_categories"`
	JobsCreated   int       `json:"jobs_created"`
	Skipped       int       `json:"skipped"`
	Errors        []string  `json:"errors,omitempty"`
}
