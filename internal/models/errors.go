package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingTenant      = errors.New("missing tenant")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrMalformedInput     = errors.New("malformed input")
)

// TransientNetworkError marks a failure worth retrying with backoff
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// RateLimitError carries the delay requested by the server
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// PermanentAPIError is never retried
type PermanentAPIError struct {
	Err error
}

func (e *PermanentAPIError) Error() string {
	return fmt.Sprintf("permanent api error: %v", e.Err)
}

func (e *PermanentAPIError) Unwrap() error { return e.Err }
