package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure for retry and HTTP mapping decisions.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindStateViolation  ErrorKind = "state_violation"
	KindDuplicate       ErrorKind = "duplicate"
	KindRateLimit       ErrorKind = "rate_limit"
	KindExternalService ErrorKind = "external_service"
	KindDatabase        ErrorKind = "database"
	KindTimeout         ErrorKind = "timeout"
	KindApplication     ErrorKind = "application"
	KindUnexpected      ErrorKind = "unexpected"
)

// Error is a classified error. Kind drives retryability and the HTTP status
// the handlers map it to; RetryAfter carries a provider-supplied hint for
// rate-limited failures.
type Error struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a classified error
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError wraps a cause with a classification
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Errorf creates a classified error with a formatted message
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the classification of err, or KindUnexpected when the error
// carries no classification.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnexpected
}

// IsRetryable reports whether a failure of this kind should be retried
func (k ErrorKind) IsRetryable() bool {
	switch k {
	case KindRateLimit, KindExternalService, KindDatabase, KindApplication, KindUnexpected:
		return true
	}
	return false
}

// RetryDelay returns the backoff before retry attempt k (zero-based retry
// index) for this error kind.
func (k ErrorKind) RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	switch k {
	case KindRateLimit:
		return time.Duration(900+300*attempt) * time.Second
	case KindExternalService:
		return capBackoff(60, attempt, 300)
	case KindDatabase:
		return capBackoff(30, attempt, 120)
	case KindApplication:
		return capBackoff(60, attempt, 180)
	default:
		return capBackoff(120, attempt, 600)
	}
}

// capBackoff computes min(base * 2^attempt, max) seconds
func capBackoff(baseSeconds, attempt, maxSeconds int) time.Duration {
	seconds := baseSeconds
	for i := 0; i < attempt; i++ {
		seconds *= 2
		if seconds >= maxSeconds {
			seconds = maxSeconds
			break
		}
	}
	if seconds > maxSeconds {
		seconds = maxSeconds
	}
	return time.Duration(seconds) * time.Second
}

// MaxAttempts returns the retry budget for a task kind
func MaxAttempts(taskKind string) int {
	switch taskKind {
	case "crawl":
		return 3
	case "cleanup":
		return 2
	case "health":
		return 1
	default:
		return 1
	}
}
