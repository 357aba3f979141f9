package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jonathan/instant-apply/internal/types"
)

// Defaults for talking to the JSearch API on RapidAPI.
const (
	DefaultHost    = "jsearch.p.rapidapi.com"
	DefaultTimeout = 30 * time.Second

	// SnippetLength bounds the normalized description snippet.
	SnippetLength = 280

	// Source tags listings collected through this client.
	Source = "jsearch"
)

// Options configures the collector client.
type Options struct {
	Host        string
	Timeout     time.Duration
	MaxRetries  uint64
	BackoffBase time.Duration
	Verbose     bool
}

// DefaultOptions returns sensible defaults for collection.
func DefaultOptions() *Options {
	return &Options{
		Host:        DefaultHost,
		Timeout:     DefaultTimeout,
		MaxRetries:  3,
		BackoffBase: 500 * time.Millisecond,
	}
}

// Client queries the job board. Each Search call re-queries upstream;
// results are ephemeral and never persisted at this stage.
type Client struct {
	apiKey string
	opts   *Options
	http   *http.Client
}

// NewClient creates a collector client. The API key is the RapidAPI key
// for the JSearch host.
func NewClient(apiKey string, opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Client{
		apiKey: apiKey,
		opts:   opts,
		http:   &http.Client{Timeout: opts.Timeout},
	}
}

// searchResponse mirrors the JSearch payload shape we consume.
type searchResponse struct {
	Data []struct {
		JobID          string `json:"job_id"`
		JobTitle       string `json:"job_title"`
		EmployerName   string `json:"employer_name"`
		JobCity        string `json:"job_city"`
		JobCountry     string `json:"job_country"`
		JobApplyLink   string `json:"job_apply_link"`
		JobDescription string `json:"job_description"`
	} `json:"data"`
}

// Search queries the job board for postings matching a free-text title
// and location. An empty title is rejected with ErrInvalidQuery.
// Transient upstream failures are retried with exponential backoff up to
// the configured bound, then surfaced as a CollectionError.
func (c *Client) Search(ctx context.Context, title, location string) ([]types.Listing, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrInvalidQuery
	}

	backoff := retry.WithMaxRetries(c.opts.MaxRetries, retry.NewExponential(c.opts.BackoffBase))

	var listings []types.Listing
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, err := c.searchOnce(ctx, title, location)
		if err != nil {
			if IsRetryable(err) {
				if c.opts.Verbose {
					log.Printf("[SEARCH] transient failure, will retry: %v", err)
				}
				return retry.RetryableError(err)
			}
			return err
		}
		listings = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// searchOnce performs a single upstream query.
func (c *Client) searchOnce(ctx context.Context, title, location string) ([]types.Listing, error) {
	query := title
	if strings.TrimSpace(location) != "" {
		query = fmt.Sprintf("%s in %s", title, location)
	}

	endpoint := url.URL{
		Scheme:   "https",
		Host:     c.opts.Host,
		Path:     "/search",
		RawQuery: url.Values{"query": {query}, "page": {"1"}}.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &CollectionError{Message: "failed to create request", Cause: err}
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.opts.Host)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &CollectionError{Message: "request failed", Retryable: true, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CollectionError{Message: "failed to read response", Retryable: true, Cause: err}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &CollectionError{Message: fmt.Sprintf("upstream HTTP %d", resp.StatusCode), Retryable: true}
	case resp.StatusCode != http.StatusOK:
		return nil, &CollectionError{Message: fmt.Sprintf("upstream HTTP %d", resp.StatusCode)}
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &CollectionError{Message: "malformed response", Cause: err}
	}

	listings := make([]types.Listing, 0, len(parsed.Data))
	for _, job := range parsed.Data {
		if job.JobApplyLink == "" {
			continue
		}
		listings = append(listings, types.Listing{
			Source:     Source,
			ExternalID: job.JobID,
			Title:      job.JobTitle,
			Company:    job.EmployerName,
			Location:   normalizeLocation(job.JobCity, job.JobCountry),
			URL:        job.JobApplyLink,
			Snippet:    snippet(job.JobDescription),
		})
	}

	if c.opts.Verbose {
		log.Printf("[SEARCH] query %q returned %d listings", query, len(listings))
	}
	return listings, nil
}

// normalizeLocation joins city and country, tolerating either being empty.
func normalizeLocation(city, country string) string {
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	default:
		return country
	}
}

// snippet trims a raw description to a bounded, whitespace-normalized
// preview.
func snippet(description string) string {
	fields := strings.Fields(description)
	normalized := strings.Join(fields, " ")
	if len(normalized) <= SnippetLength {
		return normalized
	}
	cut := normalized[:SnippetLength]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
