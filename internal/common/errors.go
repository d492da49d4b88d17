// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Classification errors.
	ErrNoErrors             = errors.New("no lint errors to classify")
	ErrClassificationFailed = errors.New("classification failed")
	ErrUnknownRule          = errors.New("unknown rule")

	// Scheduling errors.
	ErrBudgetExhausted = errors.New("cost budget exhausted")
	ErrDeadlineReached = errors.New("wall-clock deadline reached")

	// Backend errors.
	ErrBackendUnavailable = errors.New("fixing backend unavailable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// SchedulingError reports a dependency graph that cannot be executed.
// It is fatal to graph construction and surfaced before any dispatch.
type SchedulingError struct {
	Reason string
	Cycle  []string
}

func (e *SchedulingError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("scheduling error: %s (cycle: %v)", e.Reason, e.Cycle)
	}
	return fmt.Sprintf("scheduling error: %s", e.Reason)
}

// BackendErrorKind distinguishes typed backend failures.
type BackendErrorKind string

// Backend failure kinds.
const (
	BackendTimeout      BackendErrorKind = "timeout"
	BackendExitFailure  BackendErrorKind = "exit_failure"
	BackendBadResponse  BackendErrorKind = "bad_response"
	BackendRateLimited  BackendErrorKind = "rate_limited"
	BackendUnavailable  BackendErrorKind = "unavailable"
)

// BackendError is a typed failure from the fixing backend. Always
// recovered locally as a FAILED batch outcome, never a crash.
type BackendError struct {
	Err  error
	Kind BackendErrorKind
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("backend %s", e.Kind)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Kind == BackendTimeout || backendErr.Kind == BackendRateLimited
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
