// Package types defines the shared data structures used across the
// instant-apply pipeline: listings, questions, answers, attempts, and
// profile snapshots.
package types

import "fmt"

// Listing is a normalized job posting returned by the collector.
// It is immutable once collected; identity is (Source, ExternalID).
// Listings are ephemeral search results and are only persisted as part
// of an ApplicationAttempt when a user acts on one.
type Listing struct {
	Source     string `json:"source"`
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	Company    string `json:"company"`
	Location   string `json:"location"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet,omitempty"`
}

// Identity returns the canonical identity key for the listing.
func (l Listing) Identity() string {
	return fmt.Sprintf("%s/%s", l.Source, l.ExternalID)
}
