package submission

import (
	"strings"

	"github.com/jonathan/instant-apply/internal/browser"
)

// Signal names the heuristic that confirmed a submission.
type Signal string

const (
	// SignalURLChange fires when the post-submit URL moved to a page that
	// looks like a confirmation.
	SignalURLChange Signal = "url_change"
	// SignalConfirmationText fires when the post-submit page body carries
	// a known confirmation phrase.
	SignalConfirmationText Signal = "confirmation_text"
	// SignalHTTPResponse fires when the submit action produced a 2xx
	// response on an application endpoint.
	SignalHTTPResponse Signal = "http_response"
	// SignalNone means no heuristic fired; the submission is ambiguous.
	SignalNone Signal = "none"
)

// Built-in signal sets. Options can extend but not replace them.
var (
	defaultSuccessTexts = []string{
		"thank you for applying",
		"thanks for applying",
		"application received",
		"application submitted",
		"successfully submitted",
		"your application has been",
		"we have received your application",
	}
	defaultSuccessURLPatterns = []string{
		"confirmation",
		"thank",
		"success",
		"submitted",
		"applied",
	}
	applicationEndpointWords = []string{"apply", "submit", "application"}
)

// DetectSuccess evaluates the success heuristics in order of
// reliability: URL movement, confirmation text, then intercepted HTTP
// traffic. Returns SignalNone when nothing fired.
func DetectSuccess(preURL, postURL, bodyText string, responses []browser.ResponseEvent, opts *Options) Signal {
	if opts == nil {
		opts = DefaultOptions()
	}

	if postURL != "" && postURL != preURL {
		lower := strings.ToLower(postURL)
		for _, p := range append(defaultSuccessURLPatterns, opts.SuccessURLPatterns...) {
			if strings.Contains(lower, strings.ToLower(p)) {
				return SignalURLChange
			}
		}
	}

	lowerBody := strings.ToLower(bodyText)
	for _, t := range append(defaultSuccessTexts, opts.SuccessTexts...) {
		if strings.Contains(lowerBody, strings.ToLower(t)) {
			return SignalConfirmationText
		}
	}

	for _, resp := range responses {
		if resp.Status < 200 || resp.Status >= 300 {
			continue
		}
		lowerURL := strings.ToLower(resp.URL)
		for _, w := range applicationEndpointWords {
			if strings.Contains(lowerURL, w) {
				return SignalHTTPResponse
			}
		}
	}

	return SignalNone
}
