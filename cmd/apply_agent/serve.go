package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/instant-apply/internal/pipeline"
	"github.com/jonathan/instant-apply/internal/server"
)

var (
	serveConfigPath string
	servePort       int
	serveWorkers    int
	serveHeadless   bool
	serveVerbose    bool
	serveMockSearch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for listing search and application attempts.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "Concurrent application attempts (overrides config)")
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", true, "Run the browser headless")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Print detailed debug information")
	serveCmd.Flags().BoolVar(&serveMockSearch, "mock-search", false, "Serve canned listings instead of calling the search API")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(serveConfigPath)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveWorkers != 0 {
		cfg.Workers = serveWorkers
	}
	cfg.Headless = serveHeadless
	cfg.Verbose = cfg.Verbose || serveVerbose
	cfg.MockSearch = cfg.MockSearch || serveMockSearch

	ctx := context.Background()
	a, err := buildAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	pool := pipeline.NewPool(ctx, a.runner, cfg.Workers)

	srv := server.New(server.Config{
		Port:       cfg.Port,
		Searcher:   a.searcher(),
		Store:      a.ledger,
		Starter:    a.runner,
		Dispatcher: pool,
	})

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}
	return pool.Wait()
}
