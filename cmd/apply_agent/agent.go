package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/instant-apply/internal/answering"
	"github.com/jonathan/instant-apply/internal/browser"
	"github.com/jonathan/instant-apply/internal/config"
	"github.com/jonathan/instant-apply/internal/forms"
	"github.com/jonathan/instant-apply/internal/ledger"
	"github.com/jonathan/instant-apply/internal/llm"
	"github.com/jonathan/instant-apply/internal/pipeline"
	"github.com/jonathan/instant-apply/internal/profile"
	"github.com/jonathan/instant-apply/internal/search"
	"github.com/jonathan/instant-apply/internal/submission"
	"github.com/jonathan/instant-apply/internal/types"
)

// agent bundles the wired collaborators shared by the serve and apply
// commands.
type agent struct {
	cfg      config.Config
	pool     *pgxpool.Pool
	ledger   *ledger.Ledger
	profiles *profile.Store
	resumes  *profile.ResumeStore
	llm      llm.Client
	runner   *pipeline.Runner
}

// buildAgent connects the database, LLM backend, and pipeline runner
// from a merged config. The LLM client is optional: without a key,
// generative answers degrade to skipped.
func buildAgent(ctx context.Context, cfg config.Config) (*agent, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	pool, err := ledger.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a := &agent{cfg: cfg, pool: pool}
	a.ledger = ledger.New(pool)
	if err := a.ledger.InitSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.profiles = profile.NewStore(pool)
	if err := a.profiles.InitSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.resumes = profile.NewResumeStore(cfg.ResumeDir)

	if cfg.GeminiKey != "" {
		client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.GeminiKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.llm = client
	}

	synthesizer := answering.New(a.llm, &answering.Options{
		GenerationTimeout: 30 * time.Second,
		MaxConcurrent:     int64(cfg.LLMConcurrency),
		Verbose:           cfg.Verbose,
	})

	browserOpts := &browser.Options{
		NavigationTimeout: 30 * time.Second,
		Headless:          cfg.Headless,
		Verbose:           cfg.Verbose,
	}
	submitOpts := submission.DefaultOptions()
	submitOpts.SuccessTexts = cfg.SuccessTexts
	submitOpts.SuccessURLPatterns = cfg.SuccessURLPatterns
	submitOpts.Verbose = cfg.Verbose

	a.runner = pipeline.NewRunner(pipeline.Config{
		Store:    a.ledger,
		Profiles: a.profiles,
		Answerer: synthesizer,
		NewSession: func(ctx context.Context) (pipeline.Session, error) {
			return browser.NewSession(ctx, browserOpts)
		},
		NewSubmitter: func(s pipeline.Session) pipeline.Submitter {
			return &driverSubmitter{driver: submission.NewDriver(s, a.resumes.Resolve, submitOpts)}
		},
		Extract: func(ctx context.Context, pager forms.Pager, listing types.Listing) (*forms.Result, error) {
			extractOpts := forms.DefaultOptions()
			extractOpts.Verbose = cfg.Verbose
			return forms.Extract(ctx, pager, listing, extractOpts)
		},
		Timeouts: pipeline.StageTimeouts{
			Extract: config.StageTimeout(cfg.ExtractTimeoutSec),
			Answer:  config.StageTimeout(cfg.AnswerTimeoutSec),
			Fill:    config.StageTimeout(cfg.FillTimeoutSec),
			Submit:  config.StageTimeout(cfg.SubmitTimeoutSec),
		},
		Verbose: cfg.Verbose,
	})
	return a, nil
}

// driverSubmitter adapts submission.Driver to the runner's Submitter.
type driverSubmitter struct {
	driver *submission.Driver
}

func (d *driverSubmitter) Fill(ctx context.Context, pages []forms.Page, questions []types.Question, answers map[string]types.Answer) error {
	return d.driver.Fill(ctx, pages, questions, answers)
}

func (d *driverSubmitter) Submit(ctx context.Context) (*submission.Outcome, error) {
	return d.driver.Submit(ctx)
}

// searcher returns the configured listing searcher: the JSearch client,
// or canned listings in mock mode.
func (a *agent) searcher() searchFunc {
	if a.cfg.MockSearch {
		return func(_ context.Context, title, location string) ([]types.Listing, error) {
			return search.MockListings(title, location), nil
		}
	}
	opts := search.DefaultOptions()
	opts.Verbose = a.cfg.Verbose
	return search.NewClient(a.cfg.RapidAPIKey, opts).Search
}

// searchFunc adapts a function to the server's Searcher interface.
type searchFunc func(ctx context.Context, title, location string) ([]types.Listing, error)

func (f searchFunc) Search(ctx context.Context, title, location string) ([]types.Listing, error) {
	return f(ctx, title, location)
}

// Close releases the agent's resources.
func (a *agent) Close() {
	if a.llm != nil {
		_ = a.llm.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// loadConfig merges the config file, environment, and defaults.
func loadConfig(path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}
	cfg.FromEnv()
	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
