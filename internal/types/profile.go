package types

import (
	"time"

	"github.com/google/uuid"
)

// UserProfileSnapshot is a frozen copy of the profile fields relevant to
// answering, taken at attempt start. Later profile edits never
// retroactively alter a historical attempt's record.
type UserProfileSnapshot struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	ResumeText string    `json:"resume_text,omitempty"`
	// ResumeFileKey is the storage key of the resume binary, resolved
	// read-only by the resume store for file-upload fields.
	ResumeFileKey string   `json:"resume_file_key,omitempty"`
	Skills        []string `json:"skills,omitempty"`
	Experience    []string `json:"experience,omitempty"`
	DesiredTitles []string `json:"desired_titles,omitempty"`

	PortfolioLinks []string `json:"portfolio_links,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	Languages      []string `json:"languages,omitempty"`

	BiggestAchievement string `json:"biggest_achievement,omitempty"`
	CareerGoals        string `json:"career_goals,omitempty"`

	NeedsSponsorship   bool   `json:"needs_sponsorship"`
	WillingToRelocate  bool   `json:"willing_to_relocate"`
	AvailableStartDate string `json:"available_start_date,omitempty"`

	TakenAt time.Time `json:"taken_at"`
}
