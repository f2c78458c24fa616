package models

import (
	"encoding/json"
	"time"
)

// JobStatus represents the state of a crawl job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobType distinguishes scheduler-created jobs from operator-created ones
type JobType string

const (
	JobTypeScheduled JobType = "scheduled"
	JobTypeOnDemand  JobType = "on_demand"
)

// Priority and retry bounds
const (
	MinPriority   = 0
	MaxPriority   = 10
	MaxRetryCount = 10
)

// CrawlJob is a single crawl attempt for one category.
//
// Invariants:
//   - StartedAt is zero iff Status is pending
//   - CompletedAt is zero iff Status is pending or running
//   - CompletedAt >= StartedAt when both set
//   - ArticlesSaved <= ArticlesFound
type CrawlJob struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id"`
	Status     JobStatus `json:"status"`
	Priority   int       `json:"priority"`    // 0-10, higher first
	RetryCount int       `json:"retry_count"` // 0-10
	JobType    JobType   `json:"job_type"`

	// ExternalTaskID is the dispatcher-assigned execution id, unique when
	// present. Used to correlate a run with its worker slot.
	ExternalTaskID string `json:"external_task_id,omitempty"`

	// Optional explicit date window for the crawl (capped to 90 days at
	// creation). Zero values mean unbounded on that side.
	StartDate time.Time `json:"start_date,omitempty"`
	EndDate   time.Time `json:"end_date,omitempty"`

	// MaxResults caps candidates pulled from the search provider. Nil means
	// use the configured default; an explicit zero is honored and the crawl
	// finds nothing.
	MaxResults *int `json:"max_results,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`

	ErrorMessage  string                 `json:"error_message,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`

	ArticlesFound int `json:"articles_found"`
	ArticlesSaved int `json:"articles_saved"`
}

// IsTerminal reports whether the job has finished
func (j *CrawlJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// MetadataJSON serializes the metadata map for database storage
func (j *CrawlJob) MetadataJSON() (string, error) {
	if len(j.Metadata) == 0 {
		return "", nil
	}
	data, err := json.Marshal(j.Metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetMetadataJSON deserializes metadata from database storage
func (j *CrawlJob) SetMetadataJSON(data string) error {
	if data == "" {
		j.Metadata = nil
		return nil
	}
	return json.Unmarshal([]byte(data), &j.Metadata)
}

// JobDeleteImpact reports the effect of a job deletion
type JobDeleteImpact struct {
	ArticlesAffected int  `json:"articles_affected"`
	ArticlesDeleted  int  `json:"articles_deleted"`
	WasRunning       bool `json:"was_running"`
}

// JobStats aggregates job counts by status
type JobStats struct {
	Total     int `json:"total_jobs"`
	Pending   int `json:"pending_jobs"`
	Running   int `json:"running_jobs"`
	Completed int `json:"completed_jobs"`
	Failed    int `json:"failed_jobs"`
}
