// Package config provides configuration loading and validation for the
// apply agent.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the agent configuration, loadable from a JSON file
// with environment variables filling the gaps. All fields are optional;
// missing values use defaults.
type Config struct {
	// Credentials
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	GeminiKey   string `json:"gemini_api_key,omitempty"`
	RapidAPIKey string `json:"rapid_api_key,omitempty"` // JSearch key

	// Server
	Port int `json:"port,omitempty"`

	// Pipeline
	Workers        int `json:"workers,omitempty"`         // concurrent attempts
	LLMConcurrency int `json:"llm_concurrency,omitempty"` // in-flight generations

	// Stage timeouts in seconds.
	ExtractTimeoutSec int `json:"extract_timeout_sec,omitempty"`
	AnswerTimeoutSec  int `json:"answer_timeout_sec,omitempty"`
	FillTimeoutSec    int `json:"fill_timeout_sec,omitempty"`
	SubmitTimeoutSec  int `json:"submit_timeout_sec,omitempty"`

	// Submission success signals, extending the built-in sets.
	SuccessTexts       []string `json:"success_texts,omitempty"`
	SuccessURLPatterns []string `json:"success_url_patterns,omitempty"`

	// ResumeDir is the root of the read-only resume store.
	ResumeDir string `json:"resume_dir,omitempty"`

	// Behavior
	Headless   bool `json:"headless,omitempty"`
	Verbose    bool `json:"verbose,omitempty"`
	MockSearch bool `json:"mock_search,omitempty"` // canned listings, no network
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// FromEnv fills credential fields from the environment when the config
// file left them empty. Called after LoadConfig (or on a zero Config
// when no file is used).
func (c *Config) FromEnv() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.GeminiKey == "" {
		c.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.RapidAPIKey == "" {
		c.RapidAPIKey = os.Getenv("RAPID_API_KEY")
	}
	if c.ResumeDir == "" {
		c.ResumeDir = os.Getenv("RESUME_DIR")
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config error: 'workers' must be non-negative")
	}
	if c.LLMConcurrency < 0 {
		return fmt.Errorf("config error: 'llm_concurrency' must be non-negative")
	}
	for name, v := range map[string]int{
		"extract_timeout_sec": c.ExtractTimeoutSec,
		"answer_timeout_sec":  c.AnswerTimeoutSec,
		"fill_timeout_sec":    c.FillTimeoutSec,
		"submit_timeout_sec":  c.SubmitTimeoutSec,
	} {
		if v < 0 {
			return fmt.Errorf("config error: '%s' must be non-negative", name)
		}
	}
	if c.ResumeDir != "" {
		if _, err := os.Stat(c.ResumeDir); os.IsNotExist(err) {
			return fmt.Errorf("config error: resume dir not found: %s", c.ResumeDir)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.GeminiKey == "" {
		result.GeminiKey = defaults.GeminiKey
	}
	if result.RapidAPIKey == "" {
		result.RapidAPIKey = defaults.RapidAPIKey
	}
	if result.ResumeDir == "" {
		result.ResumeDir = defaults.ResumeDir
	}

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.LLMConcurrency == 0 {
		result.LLMConcurrency = defaults.LLMConcurrency
	}
	if result.ExtractTimeoutSec == 0 {
		result.ExtractTimeoutSec = defaults.ExtractTimeoutSec
	}
	if result.AnswerTimeoutSec == 0 {
		result.AnswerTimeoutSec = defaults.AnswerTimeoutSec
	}
	if result.FillTimeoutSec == 0 {
		result.FillTimeoutSec = defaults.FillTimeoutSec
	}
	if result.SubmitTimeoutSec == 0 {
		result.SubmitTimeoutSec = defaults.SubmitTimeoutSec
	}
	if len(result.SuccessTexts) == 0 {
		result.SuccessTexts = defaults.SuccessTexts
	}
	if len(result.SuccessURLPatterns) == 0 {
		result.SuccessURLPatterns = defaults.SuccessURLPatterns
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools).

	return result
}

// Defaults returns the built-in defaults.
func Defaults() Config {
	return Config{
		Port:              8080,
		Workers:           2,
		LLMConcurrency:    4,
		ExtractTimeoutSec: 120,
		AnswerTimeoutSec:  120,
		FillTimeoutSec:    180,
		SubmitTimeoutSec:  60,
		Headless:          true,
	}
}

// StageTimeout converts a seconds field to a duration.
func StageTimeout(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
