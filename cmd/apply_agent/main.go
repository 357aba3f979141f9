// Package main provides the entry point for the Instant Apply agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "apply_agent",
	Short: "Instant Apply job application agent",
	Long:  "Instant Apply searches job listings, extracts application forms with a headless browser, synthesizes answers from a user profile, and submits applications, recording every attempt.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
