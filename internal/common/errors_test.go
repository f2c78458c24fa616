package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NewError(KindNotFound, "missing")))
	assert.Equal(t, KindDatabase, KindOf(fmt.Errorf("outer: %w", NewError(KindDatabase, "locked"))))
	assert.Equal(t, KindUnexpected, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnexpected, KindOf(nil))
}

func TestErrorMessage(t *testing.T) {
	err := NewError(KindTimeout, "timeout")
	assert.Equal(t, "timeout: timeout", err.Error())

	wrapped := WrapError(KindDatabase, "query failed", errors.New("disk I/O error"))
	assert.Equal(t, "database: query failed: disk I/O error", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "disk I/O error")
}

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorKind{KindRateLimit, KindExternalService, KindDatabase, KindApplication, KindUnexpected}
	for _, kind := range retryable {
		assert.True(t, kind.IsRetryable(), string(kind))
	}

	terminal := []ErrorKind{KindValidation, KindNotFound, KindStateViolation, KindDuplicate, KindTimeout}
	for _, kind := range terminal {
		assert.False(t, kind.IsRetryable(), string(kind))
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		attempt  int
		expected time.Duration
	}{
		{KindRateLimit, 0, 900 * time.Second},
		{KindRateLimit, 1, 1200 * time.Second},
		{KindRateLimit, 2, 1500 * time.Second},

		{KindExternalService, 0, 60 * time.Second},
		{KindExternalService, 1, 120 * time.Second},
		{KindExternalService, 2, 240 * time.Second},
		{KindExternalService, 3, 300 * time.Second},

		{KindDatabase, 0, 30 * time.Second},
		{KindDatabase, 1, 60 * time.Second},
		{KindDatabase, 2, 120 * time.Second},
		{KindDatabase, 3, 120 * time.Second},

		{KindApplication, 0, 60 * time.Second},
		{KindApplication, 1, 120 * time.Second},
		{KindApplication, 2, 180 * time.Second},

		{KindUnexpected, 0, 120 * time.Second},
		{KindUnexpected, 1, 240 * time.Second},
		{KindUnexpected, 2, 480 * time.Second},
		{KindUnexpected, 3, 600 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/attempt_%d", tt.kind, tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.RetryDelay(tt.attempt))
		})
	}
}

func TestRetryDelay_NegativeAttempt(t *testing.T) {
	assert.Equal(t, 30*time.Second, KindDatabase.RetryDelay(-1))
}

func TestMaxAttempts(t *testing.T) {
	assert.Equal(t, 3, MaxAttempts("crawl"))
	assert.Equal(t, 2, MaxAttempts("cleanup"))
	assert.Equal(t, 1, MaxAttempts("health"))
	assert.Equal(t, 1, MaxAttempts("anything-else"))
}
