package common

import (
	"github.com/google/uuid"
)

// NewCategoryID generates a unique category ID with the "cat_" prefix
func NewCategoryID() string {
	return "cat_" + uuid.New().String()
}

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewArticleID generates a unique article ID with the "art_" prefix
func NewArticleID() string {
	return "art_" + uuid.New().String()
}

// NewCorrelationID generates a correlation ID for request tracing
func NewCorrelationID() string {
	return uuid.New().String()
}
