package search

import (
	"fmt"

	"github.com/jonathan/instant-apply/internal/types"
)

// MockListings returns canned listings for offline runs and tests.
func MockListings(title, location string) []types.Listing {
	if location == "" {
		location = "Remote"
	}
	return []types.Listing{
		{
			Source:     "mock",
			ExternalID: "mock-1",
			Title:      title,
			Company:    "Acme Corp",
			Location:   location,
			URL:        "https://jobs.example.com/acme/apply/1",
			Snippet:    fmt.Sprintf("Acme Corp is hiring a %s.", title),
		},
		{
			Source:     "mock",
			ExternalID: "mock-2",
			Title:      fmt.Sprintf("Senior %s", title),
			Company:    "Globex",
			Location:   location,
			URL:        "https://jobs.example.com/globex/apply/2",
			Snippet:    fmt.Sprintf("Globex seeks a senior %s to join a growing team.", title),
		},
	}
}
