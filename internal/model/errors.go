package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPosting is returned for postings without an id.
var ErrInvalidPosting = errors.New("posting has no id")

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

// ErrUnknownTopic is returned when a topic does not belong to any source.
var ErrUnknownTopic = errors.New("unknown topic")
