package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/instant-apply/internal/ledger"
	"github.com/jonathan/instant-apply/internal/profile"
	"github.com/jonathan/instant-apply/internal/types"
)

var (
	profileUser        string
	profileName        string
	profileEmail       string
	profilePhone       string
	profileResumePath  string
	profileResumeKey   string
	profileSkills      string
	profileExperience  string
	profileTitles      string
	profilePortfolio   string
	profileCerts       string
	profileLanguages   string
	profileAchievement string
	profileGoals       string
	profileStartDate   string
	profileSponsorship bool
	profileRelocate    bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Create or update a user profile",
	Long: `Upsert the profile fields used to answer application questions.

Attempts snapshot the profile at start time, so edits here never alter historical attempts.`,
	RunE: runProfile,
}

func init() {
	profileCmd.Flags().StringVarP(&profileUser, "user", "u", "", "User ID (generated when omitted)")
	profileCmd.Flags().StringVarP(&profileName, "name", "n", "", "Full name (required)")
	profileCmd.Flags().StringVar(&profileEmail, "email", "", "Email address (required)")
	profileCmd.Flags().StringVar(&profilePhone, "phone", "", "Phone number")
	profileCmd.Flags().StringVar(&profileResumePath, "resume-text", "", "Path to a plain-text resume used for generated answers")
	profileCmd.Flags().StringVar(&profileResumeKey, "resume-file", "", "Resume file key under the resume directory, for upload fields")
	profileCmd.Flags().StringVar(&profileSkills, "skills", "", "Comma-separated skills")
	profileCmd.Flags().StringVar(&profileExperience, "experience", "", "Comma-separated experience summaries")
	profileCmd.Flags().StringVar(&profileTitles, "desired-titles", "", "Comma-separated desired job titles")
	profileCmd.Flags().StringVar(&profilePortfolio, "portfolio", "", "Comma-separated portfolio/GitHub links")
	profileCmd.Flags().StringVar(&profileCerts, "certifications", "", "Comma-separated certifications")
	profileCmd.Flags().StringVar(&profileLanguages, "languages", "", "Comma-separated spoken languages")
	profileCmd.Flags().StringVar(&profileAchievement, "achievement", "", "Biggest achievement, used for strength questions")
	profileCmd.Flags().StringVar(&profileGoals, "goals", "", "Career goals, used for motivation questions")
	profileCmd.Flags().StringVar(&profileStartDate, "start-date", "", "Available start date")
	profileCmd.Flags().BoolVar(&profileSponsorship, "needs-sponsorship", false, "Whether visa sponsorship is needed")
	profileCmd.Flags().BoolVar(&profileRelocate, "willing-to-relocate", false, "Whether relocation is an option")
	_ = profileCmd.MarkFlagRequired("name")
	_ = profileCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(_ *cobra.Command, _ []string) error {
	userID := uuid.New()
	if profileUser != "" {
		parsed, err := uuid.Parse(profileUser)
		if err != nil {
			return fmt.Errorf("invalid user ID %q: %w", profileUser, err)
		}
		userID = parsed
	}

	var resumeText string
	if profileResumePath != "" {
		data, err := os.ReadFile(profileResumePath)
		if err != nil {
			return fmt.Errorf("failed to read resume text: %w", err)
		}
		resumeText = string(data)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := ledger.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := profile.NewStore(pool)
	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	snapshot := types.UserProfileSnapshot{
		UserID:             userID,
		Name:               profileName,
		Email:              profileEmail,
		Phone:              profilePhone,
		ResumeText:         resumeText,
		ResumeFileKey:      profileResumeKey,
		Skills:             splitList(profileSkills),
		Experience:         splitList(profileExperience),
		DesiredTitles:      splitList(profileTitles),
		PortfolioLinks:     splitList(profilePortfolio),
		Certifications:     splitList(profileCerts),
		Languages:          splitList(profileLanguages),
		BiggestAchievement: profileAchievement,
		CareerGoals:        profileGoals,
		NeedsSponsorship:   profileSponsorship,
		WillingToRelocate:  profileRelocate,
		AvailableStartDate: profileStartDate,
	}
	if err := store.Upsert(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Printf("Saved profile for user %s\n", userID)
	return nil
}

// splitList parses a comma-separated flag into trimmed non-empty items.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
