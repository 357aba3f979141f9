package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/instant-apply/internal/observability"
	"github.com/jonathan/instant-apply/internal/search"
)

var (
	searchTitle    string
	searchLocation string
	searchMock     bool
	searchVerbose  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search job listings without starting an application",
	Long:  `Query the job board for postings matching a title and optional location. Results are printed and never persisted.`,
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchTitle, "title", "t", "", "Job title to search for (required)")
	searchCmd.Flags().StringVarP(&searchLocation, "location", "l", "", "Location filter (optional)")
	searchCmd.Flags().BoolVar(&searchMock, "mock", false, "Return canned listings instead of calling the search API")
	searchCmd.Flags().BoolVarP(&searchVerbose, "verbose", "v", false, "Print detailed debug information")
	_ = searchCmd.MarkFlagRequired("title")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(_ *cobra.Command, _ []string) error {
	printer := observability.NewPrinter(os.Stdout)

	if searchMock {
		printer.PrintListings(search.MockListings(searchTitle, searchLocation))
		return nil
	}

	apiKey := os.Getenv("RAPID_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("RAPID_API_KEY environment variable is required (or pass --mock)")
	}

	opts := search.DefaultOptions()
	opts.Verbose = searchVerbose
	client := search.NewClient(apiKey, opts)

	listings, err := client.Search(context.Background(), searchTitle, searchLocation)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printer.PrintListings(listings)
	return nil
}
