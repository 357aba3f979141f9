// Package forms discovers the question set an application form asks.
// Discovery is a best-effort classifier over markup-drift-prone pages:
// unknown field shapes degrade to flagged skips rather than failing the
// whole extraction.
package forms

import (
	"errors"
	"fmt"
)

// ErrNoFormDetected means the application page rendered no recognizable
// form. Terminal: the listing is marked non-automatable.
var ErrNoFormDetected = errors.New("forms: no application form detected")

// PageUnreachableError is a navigation or network failure loading the
// application page. Retryable.
type PageUnreachableError struct {
	URL   string
	Cause error
}

func (e *PageUnreachableError) Error() string {
	return fmt.Sprintf("page unreachable: %s: %v", e.URL, e.Cause)
}

func (e *PageUnreachableError) Unwrap() error {
	return e.Cause
}

// SkippedField records an interactive element the classifier could not
// map to a supported question kind. Local and non-fatal: the field is
// skipped and flagged, extraction continues.
type SkippedField struct {
	Tag    string `json:"tag"`
	Type   string `json:"type"`
	Page   int    `json:"page"`
	Reason string `json:"reason"`
}
