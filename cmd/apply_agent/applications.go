package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/instant-apply/internal/ledger"
	"github.com/jonathan/instant-apply/internal/observability"
)

var (
	applicationsUser string
	applicationsID   string
)

var applicationsCmd = &cobra.Command{
	Use:   "applications",
	Short: "Inspect persisted application attempts",
	Long:  `List a user's application attempts or show one attempt with its status history.`,
	RunE:  runApplications,
}

func init() {
	applicationsCmd.Flags().StringVarP(&applicationsUser, "user", "u", "", "List attempts for this user ID")
	applicationsCmd.Flags().StringVar(&applicationsID, "id", "", "Show a single attempt by ID")
	rootCmd.AddCommand(applicationsCmd)
}

func runApplications(_ *cobra.Command, _ []string) error {
	if applicationsUser == "" && applicationsID == "" {
		return fmt.Errorf("either --user or --id is required")
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
	store := ledger.New(pool)
	printer := observability.NewPrinter(os.Stdout)

	if applicationsID != "" {
		attemptID, err := uuid.Parse(applicationsID)
		if err != nil {
			return fmt.Errorf("invalid attempt ID %q: %w", applicationsID, err)
		}
		attempt, err := store.GetAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		printer.PrintAttempt(attempt)
		events, err := store.ListEvents(ctx, attemptID)
		if err != nil {
			return err
		}
		for _, ev := range events {
			line := fmt.Sprintf("  %s  %s", ev.At.Format("2006-01-02 15:04:05"), ev.Status)
			if ev.Cause != "" {
				line += fmt.Sprintf(" (%s)", ev.Cause)
			}
			fmt.Println(line)
		}
		return nil
	}

	userID, err := uuid.Parse(applicationsUser)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", applicationsUser, err)
	}
	attempts, err := store.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Println("No application attempts found.")
		return nil
	}
	for _, attempt := range attempts {
		printer.PrintAttempt(attempt)
	}
	return nil
}
