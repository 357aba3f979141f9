package forms

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/instant-apply/internal/types"
)

// Pager is the browser surface extraction needs. Implemented by
// browser.Session.
type Pager interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
}

// Options configures extraction.
type Options struct {
	// MaxPages bounds multi-page wizard traversal.
	MaxPages int
	// PageSettle is how long to wait after advancing a page before
	// snapshotting its markup.
	PageSettle time.Duration
	Verbose    bool
}

// DefaultOptions returns extraction defaults.
func DefaultOptions() *Options {
	return &Options{
		MaxPages:   5,
		PageSettle: 1500 * time.Millisecond,
	}
}

// Result is the aggregate outcome of extracting one application form:
// the union of every page's question set, tagged with page order, plus
// the per-page navigation metadata the submission driver replays.
type Result struct {
	Questions []types.Question
	Pages     []Page
	Skipped   []SkippedField
}

// Extract opens the listing's application page and discovers the set of
// questions it asks. Multi-page wizards are walked in order: a page with
// a continue control and no submit control is treated as intermediate,
// and the aggregate question set is the union across pages.
//
// The caller owns the Pager's session lifecycle; Extract never closes it.
func Extract(ctx context.Context, pager Pager, listing types.Listing, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	if err := pager.Navigate(ctx, listing.URL); err != nil {
		return nil, &PageUnreachableError{URL: listing.URL, Cause: err}
	}

	result := &Result{}
	seen := map[string]bool{}

	for pageIndex := 0; pageIndex < opts.MaxPages; pageIndex++ {
		html, err := pager.HTML(ctx)
		if err != nil {
			return nil, &PageUnreachableError{URL: listing.URL, Cause: err}
		}

		page, err := ParsePage(html, pageIndex)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d: %w", pageIndex, err)
		}

		// A re-rendered page can repeat fields from an earlier one;
		// keep the first discovery.
		for _, q := range page.Questions {
			if seen[q.FieldID] {
				continue
			}
			seen[q.FieldID] = true
			result.Questions = append(result.Questions, q)
		}
		result.Skipped = append(result.Skipped, page.Skipped...)
		result.Pages = append(result.Pages, *page)

		if opts.Verbose {
			log.Printf("[EXTRACT] page %d: %d questions, %d skipped (continue=%q submit=%t)",
				pageIndex, len(page.Questions), len(page.Skipped), page.ContinueSelector, page.HasSubmit)
		}

		if !page.IsIntermediate() {
			break
		}
		if err := pager.Click(ctx, page.ContinueSelector); err != nil {
			// The continue control is a heuristic boundary; if it cannot
			// be advanced, stop with what was discovered so far.
			if opts.Verbose {
				log.Printf("[EXTRACT] could not advance past page %d: %v", pageIndex, err)
			}
			break
		}
		select {
		case <-time.After(opts.PageSettle):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if len(result.Questions) == 0 {
		return nil, ErrNoFormDetected
	}
	return result, nil
}
