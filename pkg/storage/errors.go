package storage

import (
	"errors"
	"fmt"
)

// Common storage errors
var (
	// ErrNotFound indicates the requested object was not found
	ErrNotFound = errors.New("storage: object not found")

	// ErrAccessDenied indicates access was denied
	ErrAccessDenied = errors.New("storage: access denied")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("storage: invalid configuration")

	// ErrAmbiguousKey indicates a key did not resolve to exactly one object.
	ErrAmbiguousKey = errors.New("storage: key does not resolve to exactly one object")

	// ErrChecksumMismatch indicates checksum verification failed
	ErrChecksumMismatch = errors.New("storage: checksum mismatch")
)

// Error represents a storage error with additional context
type Error struct {
	Op       string // Operation that failed
	Key      string // Object key involved in the operation
	Provider string // Storage provider type
	Err      error  // Underlying error
}

// Error returns the string representation of the error
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s: %s failed for %s: %v", e.Provider, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %s failed: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new storage error
func NewError(op string, key string, provider Provider, err error) error {
	return &Error{
		Op:       op,
		Key:      key,
		Provider: string(provider),
		Err:      err,
	}
}

// AmbiguousKeyError reports how many objects matched a key that must be unique.
type AmbiguousKeyError struct {
	Bucket  string
	Key     string
	Matches int
}

func (e *AmbiguousKeyError) Error() string {
	return fmt.Sprintf("querying bucket %s for %s returned %d results", e.Bucket, e.Key, e.Matches)
}

// Is makes errors.Is(err, ErrAmbiguousKey) hold.
func (e *AmbiguousKeyError) Is(target error) bool {
	return target == ErrAmbiguousKey
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAmbiguousKey checks if an error is an ambiguous key error
func IsAmbiguousKey(err error) bool {
	return errors.Is(err, ErrAmbiguousKey)
}

// IsChecksumMismatch checks if an error is a checksum mismatch error
func IsChecksumMismatch(err error) bool {
	return errors.Is(err, ErrChecksumMismatch)
}

// RetryableError wraps an error to indicate it can be retried
type RetryableError struct {
	Err error
}

// Error returns the string representation of the retryable error
func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var retryable *RetryableError
	return errors.As(err, &retryable)
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
