package model

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrIncompleteIdentity is returned when title, employer or location is
	// empty after normalization. The listing must be skipped, never hashed.
	ErrIncompleteIdentity = errors.New("incomplete identity")

	// ErrEmbeddingUnavailable marks text that could not be embedded. Metadata is
	// still persisted; only the vector entry is omitted.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrProvider wraps any failed call to the search provider, metadata store
	// or vector index.
	ErrProvider = errors.New("provider error")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrProvider) match any HTTP failure.
func (e *HTTPError) Is(target error) bool {
	return target == ErrProvider
}

// ParseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
