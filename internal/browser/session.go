// Package browser provides scoped headless-browser sessions for form
// extraction and submission. Each application attempt runs on its own
// isolated session: a fresh browser profile with no cookies or cached
// form data carried over from unrelated attempts.
package browser

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Options configures a browser session.
type Options struct {
	// NavigationTimeout bounds page loads.
	NavigationTimeout time.Duration
	Headless          bool
	Verbose           bool
}

// DefaultOptions returns defaults suitable for job-board pages.
func DefaultOptions() *Options {
	return &Options{
		NavigationTimeout: 30 * time.Second,
		Headless:          true,
	}
}

// ResponseEvent is a network response observed during the session, used
// by the submission driver's success heuristics.
type ResponseEvent struct {
	URL    string
	Status int64
}

// Session is a scoped browser session. Callers must Close it on all
// exit paths; Close tears down the tab and the browser process.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	opts    *Options

	mu        sync.Mutex
	responses []ResponseEvent
}

// NewSession starts an isolated headless browser. Requires a local
// Chrome/Chromium install.
func NewSession(ctx context.Context, opts *Options) (*Session, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{cancelBrowser, cancelAlloc},
		opts:    opts,
	}

	// Record response statuses so submission confirmation can fall back
	// to an intercepted HTTP success code.
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			s.mu.Lock()
			s.responses = append(s.responses, ResponseEvent{
				URL:    resp.Response.URL,
				Status: resp.Response.Status,
			})
			s.mu.Unlock()
		}
	})

	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	return s, nil
}

// Close tears down the session. Safe to call multiple times.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// run executes chromedp actions on the session, honoring the caller's
// deadline and cancellation.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads a URL and waits for the document body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.opts.Verbose {
		log.Printf("[BROWSER] navigating to %s", url)
	}
	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()

	err := s.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		// Give JavaScript-rendered forms a moment to attach.
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// HTML returns the rendered document markup.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("failed to capture page HTML: %w", err)
	}
	return html, nil
}

// CurrentURL returns the page's current location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// BodyText returns the visible text of the page body.
func (s *Session) BodyText(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read body text: %w", err)
	}
	return text, nil
}

// Click clicks the first visible element matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %q failed: %w", selector, err)
	}
	return nil
}

// Fill clears a text-like field and types a value into it.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	err := s.run(ctx,
		chromedp.WaitVisible(selector),
		chromedp.Clear(selector),
		chromedp.SendKeys(selector, value),
	)
	if err != nil {
		return fmt.Errorf("fill %q failed: %w", selector, err)
	}
	return nil
}

// SelectOption selects an option on a <select> element by value and
// dispatches a change event so framework listeners observe it.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); if (!el) return false;
		el.value = %q; el.dispatchEvent(new Event('change', {bubbles: true})); return true; })()`,
		selector, value,
	)
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("select %q failed: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("select %q failed: element not found", selector)
	}
	return nil
}

// SetChecked checks or unchecks a radio button or checkbox.
func (s *Session) SetChecked(ctx context.Context, selector string, checked bool) error {
	script := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); if (!el) return false;
		if (el.checked !== %t) { el.click(); } return true; })()`,
		selector, checked,
	)
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("set checked %q failed: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("set checked %q failed: element not found", selector)
	}
	return nil
}

// Upload attaches a local file to a file input.
func (s *Session) Upload(ctx context.Context, selector, path string) error {
	if err := s.run(ctx, chromedp.SetUploadFiles(selector, []string{path})); err != nil {
		return fmt.Errorf("upload to %q failed: %w", selector, err)
	}
	return nil
}

// Responses returns a copy of the network responses observed so far.
func (s *Session) Responses() []ResponseEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ResponseEvent, len(s.responses))
	copy(out, s.responses)
	return out
}

// ResetResponses clears the observed response log. The submission driver
// calls this right before submitting so the success heuristics only see
// traffic caused by the submit action.
func (s *Session) ResetResponses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = s.responses[:0]
}
