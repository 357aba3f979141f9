// Package search provides the listing collector: it queries an external
// job board API and normalizes raw postings into canonical listings.
package search

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is returned for bad caller input (empty job title).
var ErrInvalidQuery = errors.New("search: job title must not be empty")

// CollectionError represents a failed collection from the upstream job
// board. Retryable errors (timeouts, 5xx responses) may be retried with
// backoff up to a bounded attempt count; the rest surface immediately.
type CollectionError struct {
	Message   string
	Retryable bool
	Cause     error
}

func (e *CollectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("collection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("collection failed: %s", e.Message)
}

func (e *CollectionError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err is a retryable collection failure.
func IsRetryable(err error) bool {
	var ce *CollectionError
	return errors.As(err, &ce) && ce.Retryable
}
