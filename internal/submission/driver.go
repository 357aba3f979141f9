// Package submission replays synthesized answers into a live application
// form and decides whether the submission actually landed. Filling is
// paced with small randomized delays so the interaction profile looks
// like a person typing rather than a burst of DOM writes.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/jonathan/instant-apply/internal/browser"
	"github.com/jonathan/instant-apply/internal/forms"
	"github.com/jonathan/instant-apply/internal/types"
)

// ErrAmbiguousSubmission reports that the submit action completed but no
// success signal was observed. The attempt is failed rather than marked
// submitted: a false "submitted" is worse than a false failure.
var ErrAmbiguousSubmission = errors.New("no submission success signal observed")

// ErrNoSubmitControl reports that the final page carried no recognizable
// submit control to click.
var ErrNoSubmitControl = errors.New("no submit control on final page")

// Form is the browser surface the driver fills. *browser.Session
// implements it; tests substitute a fake.
type Form interface {
	Fill(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	SetChecked(ctx context.Context, selector string, checked bool) error
	Upload(ctx context.Context, selector, path string) error
	Click(ctx context.Context, selector string) error
	CurrentURL(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
	Responses() []browser.ResponseEvent
	ResetResponses()
}

// FileResolver maps a stored resume file key to a local path the browser
// can upload.
type FileResolver func(fileKey string) (string, error)

// Options tune driver behavior.
type Options struct {
	// MinPause and MaxPause bound the randomized delay between field
	// interactions.
	MinPause time.Duration
	MaxPause time.Duration
	// SettleAfterSubmit is how long to wait after the submit click before
	// reading success signals, so redirects and XHRs can land.
	SettleAfterSubmit time.Duration
	// PageSettle is the wait after advancing to the next wizard page.
	PageSettle time.Duration

	// SuccessTexts and SuccessURLPatterns extend the built-in success
	// signal sets.
	SuccessTexts       []string
	SuccessURLPatterns []string

	Verbose bool
}

// DefaultOptions returns pacing suited to typical job boards.
func DefaultOptions() *Options {
	return &Options{
		MinPause:          500 * time.Millisecond,
		MaxPause:          2 * time.Second,
		SettleAfterSubmit: 3 * time.Second,
		PageSettle:        1500 * time.Millisecond,
	}
}

// Outcome is the result of a completed submission drive.
type Outcome struct {
	Submitted bool
	// Signal names the heuristic that confirmed the submission.
	Signal Signal
	// FinalURL is the page location after the submit action settled.
	FinalURL string
	// Filled counts the fields actually written.
	Filled int
	// SkippedAnswers counts answers left blank (skipped provenance or
	// unmatched choice values).
	SkippedAnswers int
}

// Driver fills and submits one attempt's form. Fill walks the wizard
// and writes answers; Submit clicks the final control and reads success
// signals. The two phases run under separate timeouts upstream.
type Driver struct {
	form    Form
	resolve FileResolver
	opts    *Options
	rng     *rand.Rand

	// Set by Fill, consumed by Submit.
	filled    int
	skipped   int
	submitSel string
}

// NewDriver creates a driver over an open form surface. resolve may be
// nil when no file answers are expected.
func NewDriver(form Form, resolve FileResolver, opts *Options) *Driver {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Driver{
		form:    form,
		resolve: resolve,
		opts:    opts,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fill replays answers page by page in extraction order and advances
// through intermediate pages, leaving the browser parked on the final
// page. answers is keyed by question ID. It does not touch the submit
// control; that is Submit's job.
func (d *Driver) Fill(ctx context.Context, pages []forms.Page, questions []types.Question, answers map[string]types.Answer) error {
	d.filled = 0
	d.skipped = 0
	d.submitSel = ""
	byPage := questionsByPage(questions)

	for i, page := range pages {
		for _, q := range byPage[page.Index] {
			answer, ok := answers[q.ID]
			if !ok || answer.Skipped() {
				d.skipped++
				continue
			}
			if err := d.apply(ctx, q, answer); err != nil {
				if d.opts.Verbose {
					log.Printf("[SUBMIT] could not fill %q: %v", q.Label, err)
				}
				d.skipped++
				continue
			}
			d.filled++
			if err := d.pause(ctx); err != nil {
				return err
			}
		}

		if i < len(pages)-1 {
			if page.ContinueSelector == "" {
				return fmt.Errorf("page %d has no continue control", page.Index)
			}
			if err := d.form.Click(ctx, page.ContinueSelector); err != nil {
				return fmt.Errorf("advancing past page %d: %w", page.Index, err)
			}
			if err := sleepCtx(ctx, d.opts.PageSettle); err != nil {
				return err
			}
		}
	}

	if len(pages) > 0 {
		final := pages[len(pages)-1]
		d.submitSel = final.SubmitSelector
		if d.submitSel == "" {
			// Some boards label the last wizard step's advance control as
			// the submit action.
			d.submitSel = final.ContinueSelector
		}
	}
	return nil
}

// Submit clicks the submit control located by Fill and evaluates
// success signals once the page settles.
func (d *Driver) Submit(ctx context.Context) (*Outcome, error) {
	if d.submitSel == "" {
		return nil, ErrNoSubmitControl
	}
	outcome := &Outcome{Filled: d.filled, SkippedAnswers: d.skipped}

	preURL, err := d.form.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading pre-submit URL: %w", err)
	}
	d.form.ResetResponses()

	if err := d.form.Click(ctx, d.submitSel); err != nil {
		return nil, fmt.Errorf("clicking submit: %w", err)
	}
	if err := sleepCtx(ctx, d.opts.SettleAfterSubmit); err != nil {
		return nil, err
	}

	postURL, err := d.form.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading post-submit URL: %w", err)
	}
	body, err := d.form.BodyText(ctx)
	if err != nil {
		// The page may have navigated somewhere unreadable. Signals below
		// can still confirm via URL or network traffic.
		body = ""
	}

	signal := DetectSuccess(preURL, postURL, body, d.form.Responses(), d.opts)
	outcome.FinalURL = postURL
	outcome.Signal = signal
	if signal == SignalNone {
		return outcome, ErrAmbiguousSubmission
	}
	outcome.Submitted = true
	if d.opts.Verbose {
		log.Printf("[SUBMIT] confirmed via %s at %s", signal, postURL)
	}
	return outcome, nil
}

// apply writes one answer into its field.
func (d *Driver) apply(ctx context.Context, q types.Question, a types.Answer) error {
	switch q.Kind {
	case types.KindText:
		if a.Value == "" {
			return fmt.Errorf("empty value for text field")
		}
		return d.form.Fill(ctx, q.Selector, a.Value)

	case types.KindFile:
		if d.resolve == nil {
			return fmt.Errorf("no file resolver configured")
		}
		path, err := d.resolve(a.FileKey)
		if err != nil {
			return fmt.Errorf("resolving file %q: %w", a.FileKey, err)
		}
		return d.form.Upload(ctx, q.Selector, path)

	case types.KindChoice, types.KindBoolean:
		return d.applyChoice(ctx, q, a)

	case types.KindMultiChoice:
		return d.applyMultiChoice(ctx, q, a)
	}
	return fmt.Errorf("unsupported question kind %q", q.Kind)
}

// applyChoice selects one option. Select elements carry ChoiceValues,
// radio groups carry ChoiceSelectors, a lone boolean checkbox carries
// neither and is toggled directly.
func (d *Driver) applyChoice(ctx context.Context, q types.Question, a types.Answer) error {
	idx := choiceIndex(q, a)
	if idx < 0 {
		return fmt.Errorf("answer %q matches no option", a.Value)
	}
	switch {
	case len(q.ChoiceSelectors) > idx:
		return d.form.SetChecked(ctx, q.ChoiceSelectors[idx], true)
	case len(q.ChoiceValues) > idx:
		return d.form.SelectOption(ctx, q.Selector, q.ChoiceValues[idx])
	default:
		// Lone checkbox rendered as a yes/no question.
		return d.form.SetChecked(ctx, q.Selector, strings.EqualFold(q.Choices[idx], "yes"))
	}
}

// applyMultiChoice checks every option named in the answer value.
func (d *Driver) applyMultiChoice(ctx context.Context, q types.Question, a types.Answer) error {
	wanted := map[string]bool{}
	for _, part := range strings.Split(a.Value, ",") {
		wanted[strings.ToLower(strings.TrimSpace(part))] = true
	}
	checked := 0
	for i, choice := range q.Choices {
		if !wanted[strings.ToLower(strings.TrimSpace(choice))] {
			continue
		}
		if len(q.ChoiceSelectors) <= i {
			continue
		}
		if err := d.form.SetChecked(ctx, q.ChoiceSelectors[i], true); err != nil {
			return err
		}
		checked++
	}
	if checked == 0 {
		return fmt.Errorf("answer %q matches no option", a.Value)
	}
	return nil
}

// choiceIndex resolves the option index for a choice answer, preferring
// the synthesizer's explicit index over value matching.
func choiceIndex(q types.Question, a types.Answer) int {
	if a.ChoiceIndex != nil && *a.ChoiceIndex >= 0 && *a.ChoiceIndex < len(q.Choices) {
		return *a.ChoiceIndex
	}
	for i, c := range q.Choices {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(a.Value)) {
			return i
		}
	}
	return -1
}

// pause sleeps for a randomized human-pacing interval.
func (d *Driver) pause(ctx context.Context) error {
	if d.opts.MaxPause <= 0 {
		return nil
	}
	delay := d.opts.MinPause
	if spread := d.opts.MaxPause - d.opts.MinPause; spread > 0 {
		delay += time.Duration(d.rng.Int63n(int64(spread)))
	}
	return sleepCtx(ctx, delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// questionsByPage groups questions by page index, preserving position
// order within each page.
func questionsByPage(questions []types.Question) map[int][]types.Question {
	byPage := map[int][]types.Question{}
	for _, q := range questions {
		byPage[q.Page] = append(byPage[q.Page], q)
	}
	return byPage
}
