package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/instant-apply/internal/observability"
	"github.com/jonathan/instant-apply/internal/types"
)

var (
	applyConfigPath string
	applyUser       string
	applyURL        string
	applySource     string
	applyExternalID string
	applyTitle      string
	applyCompany    string
	applyLocation   string
	applyHeadless   bool
	applyVerbose    bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Run a single application attempt end-to-end",
	Long: `Drives one application attempt through the full pipeline: navigation -> extraction -> answering -> filling -> submission.

The attempt and its status history are persisted; rerun a failed listing with a fresh attempt at any time.`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	applyCmd.Flags().StringVarP(&applyUser, "user", "u", "", "User ID whose profile answers the application (required)")
	applyCmd.Flags().StringVar(&applyURL, "url", "", "Application form URL (required)")
	applyCmd.Flags().StringVar(&applySource, "source", "manual", "Listing source tag")
	applyCmd.Flags().StringVar(&applyExternalID, "external-id", "", "Listing external ID (defaults to the URL)")
	applyCmd.Flags().StringVar(&applyTitle, "title", "", "Job title for the attempt record")
	applyCmd.Flags().StringVar(&applyCompany, "company", "", "Company name for the attempt record")
	applyCmd.Flags().StringVar(&applyLocation, "location", "", "Job location for the attempt record")
	applyCmd.Flags().BoolVar(&applyHeadless, "headless", true, "Run the browser headless")
	applyCmd.Flags().BoolVarP(&applyVerbose, "verbose", "v", false, "Print detailed debug information")
	_ = applyCmd.MarkFlagRequired("user")
	_ = applyCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(applyCmd)
}

func runApply(_ *cobra.Command, _ []string) error {
	userID, err := uuid.Parse(applyUser)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", applyUser, err)
	}

	cfg, err := loadConfig(applyConfigPath)
	if err != nil {
		return err
	}
	cfg.Headless = applyHeadless
	cfg.Verbose = cfg.Verbose || applyVerbose

	ctx := context.Background()
	a, err := buildAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	externalID := applyExternalID
	if externalID == "" {
		externalID = applyURL
	}
	listing := types.Listing{
		Source:     applySource,
		ExternalID: externalID,
		Title:      applyTitle,
		Company:    applyCompany,
		Location:   applyLocation,
		URL:        applyURL,
	}

	attempt, err := a.runner.Start(ctx, userID, listing)
	if err != nil {
		return fmt.Errorf("failed to start attempt: %w", err)
	}
	fmt.Printf("Started attempt %s for %s\n", attempt.ID, listing.Identity())

	if err := a.runner.RunAttempt(ctx, attempt); err != nil {
		fmt.Fprintf(os.Stderr, "Attempt did not complete: %v\n", err)
	}

	final, err := a.ledger.GetAttempt(ctx, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to load attempt: %w", err)
	}
	printer := observability.NewPrinter(os.Stdout)
	printer.PrintAttempt(final)
	printer.PrintQuestions(final.Questions)
	printer.PrintAnswers(final.Questions, final.Answers)
	return nil
}
