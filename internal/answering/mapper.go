// Package answering synthesizes answers for discovered form questions
// from a frozen user profile snapshot, preferring deterministic profile
// matches over the generative backend: deterministic answers are
// reproducible and auditable, generative ones are used only when no
// structural match exists.
package answering

import (
	"strings"

	"github.com/jonathan/instant-apply/internal/types"
)

// profileBucket names a profile field a question label can map to.
type profileBucket string

const (
	bucketName          profileBucket = "name"
	bucketEmail         profileBucket = "email"
	bucketPhone         profileBucket = "phone"
	bucketStrength      profileBucket = "biggest_achievement"
	bucketCareerGoals   profileBucket = "career_goals"
	bucketExperience    profileBucket = "experience"
	bucketSkills        profileBucket = "skills"
	bucketSponsorship   profileBucket = "sponsorship"
	bucketAuthorization profileBucket = "authorization"
	bucketRelocation    profileBucket = "relocation"
	bucketStartDate     profileBucket = "start_date"
	bucketPortfolio     profileBucket = "portfolio_links"
	bucketCertification profileBucket = "certifications"
	bucketLanguages     profileBucket = "languages"
	bucketNone          profileBucket = ""
)

// bucketPhrases maps label phrases to profile buckets. Order matters:
// the first bucket whose phrase list matches wins.
var bucketPhrases = []struct {
	bucket  profileBucket
	phrases []string
}{
	{bucketEmail, []string{"email", "e-mail"}},
	{bucketPhone, []string{"phone", "mobile number", "telephone"}},
	{bucketName, []string{"full name", "your name", "first and last name", "legal name"}},
	{bucketStrength, []string{"greatest strength", "biggest strength", "key strength", "top strength", "biggest achievement"}},
	{bucketCareerGoals, []string{"career goal", "career ambition", "long-term goal", "short-term goal", "where do you see yourself"}},
	{bucketSponsorship, []string{"visa sponsorship", "need sponsorship", "require sponsorship", "sponsorship"}},
	{bucketAuthorization, []string{"work authorization", "authorized to work", "legally authorized", "authorization"}},
	{bucketRelocation, []string{"relocate", "willing to move", "open to relocation", "consider relocation", "change location"}},
	{bucketStartDate, []string{"start date", "availability date", "when can you start", "available to start"}},
	{bucketPortfolio, []string{"github", "portfolio", "personal site", "personal website", "online portfolio"}},
	{bucketCertification, []string{"certification", "licenses", "credentials", "accreditations"}},
	{bucketLanguages, []string{"language proficiency", "what languages", "spoken languages", "which languages"}},
	{bucketSkills, []string{"skills", "core competencies", "technical skills", "expertise", "areas of expertise"}},
	{bucketExperience, []string{"experience", "work history", "previous roles", "professional background", "your background"}},
}

// classifyLabel maps a question label to a profile bucket, or bucketNone
// when the label matches nothing and the generative backend must answer.
func classifyLabel(label string) profileBucket {
	lower := strings.ToLower(label)
	for _, entry := range bucketPhrases {
		for _, phrase := range entry.phrases {
			if strings.Contains(lower, phrase) {
				return entry.bucket
			}
		}
	}
	return bucketNone
}

// profileText resolves a text bucket to its snapshot value. Returns ""
// when the profile has nothing for the bucket.
func profileText(bucket profileBucket, profile types.UserProfileSnapshot) string {
	switch bucket {
	case bucketName:
		return profile.Name
	case bucketEmail:
		return profile.Email
	case bucketPhone:
		return profile.Phone
	case bucketStrength:
		return profile.BiggestAchievement
	case bucketCareerGoals:
		return profile.CareerGoals
	case bucketExperience:
		return strings.Join(profile.Experience, "; ")
	case bucketSkills:
		return strings.Join(profile.Skills, ", ")
	case bucketStartDate:
		return profile.AvailableStartDate
	case bucketPortfolio:
		return strings.Join(profile.PortfolioLinks, ", ")
	case bucketCertification:
		return strings.Join(profile.Certifications, ", ")
	case bucketLanguages:
		return strings.Join(profile.Languages, ", ")
	}
	return ""
}

// profileFlag resolves a boolean bucket against the snapshot's flags.
// The second return reports whether the bucket is flag-backed at all.
func profileFlag(bucket profileBucket, profile types.UserProfileSnapshot) (bool, bool) {
	switch bucket {
	case bucketSponsorship:
		// "Do you require sponsorship?": answer mirrors the flag.
		return profile.NeedsSponsorship, true
	case bucketAuthorization:
		// "Are you authorized to work?": inverse of needing sponsorship.
		return !profile.NeedsSponsorship, true
	case bucketRelocation:
		return profile.WillingToRelocate, true
	}
	return false, false
}

// matchChoice finds the index of a target word ("yes"/"no") in a choice
// set, case-insensitively. Returns -1 when absent.
func matchChoice(choices []string, target string) int {
	for i, c := range choices {
		if strings.EqualFold(strings.TrimSpace(c), target) {
			return i
		}
	}
	return -1
}

// matchSkills intersects a multichoice question's options with the
// profile's skills, preserving choice order.
func matchSkills(choices, skills []string) []string {
	lowered := make(map[string]bool, len(skills))
	for _, s := range skills {
		lowered[strings.ToLower(strings.TrimSpace(s))] = true
	}
	var matched []string
	for _, c := range choices {
		if lowered[strings.ToLower(strings.TrimSpace(c))] {
			matched = append(matched, c)
		}
	}
	return matched
}
