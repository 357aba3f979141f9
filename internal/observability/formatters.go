// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/instant-apply/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintListings outputs a human-readable summary of search results.
func (p *Printer) PrintListings(listings []types.Listing) {
	var sb strings.Builder

	if len(listings) == 0 {
		sb.WriteString("No listings found.\n")
		p.printBox("SEARCH RESULTS", strings.TrimRight(sb.String(), "\n"))
		return
	}

	for i, l := range listings {
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, l.Title))
		if l.Company != "" {
			sb.WriteString(fmt.Sprintf(" @ %s", l.Company))
		}
		sb.WriteString("\n")
		if l.Location != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", l.Location))
		}
		sb.WriteString(fmt.Sprintf("   %s\n", l.URL))
	}

	p.printBox(fmt.Sprintf("SEARCH RESULTS (%d)", len(listings)), strings.TrimRight(sb.String(), "\n"))
}

// PrintQuestions outputs a human-readable summary of a discovered
// question set.
func (p *Printer) PrintQuestions(questions []types.Question) {
	var sb strings.Builder

	if len(questions) == 0 {
		sb.WriteString("No questions discovered.\n")
	}
	count := min(len(questions), maxItemsToShow*2)
	for i := 0; i < count; i++ {
		q := questions[i]
		sb.WriteString(fmt.Sprintf("• [%s] %s", q.Kind, q.Label))
		if q.LowConfidence {
			sb.WriteString(" (?)")
		}
		sb.WriteString("\n")
		if len(q.Choices) > 0 {
			shown := min(len(q.Choices), maxItemsToShow)
			sb.WriteString(fmt.Sprintf("    options: %s", strings.Join(q.Choices[:shown], " | ")))
			if len(q.Choices) > shown {
				sb.WriteString(fmt.Sprintf(" ... and %d more", len(q.Choices)-shown))
			}
			sb.WriteString("\n")
		}
	}
	if len(questions) > count {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(questions)-count))
	}

	p.printBox(fmt.Sprintf("DISCOVERED QUESTIONS (%d)", len(questions)), strings.TrimRight(sb.String(), "\n"))
}

// PrintAnswers outputs synthesized answers keyed back to their questions.
func (p *Printer) PrintAnswers(questions []types.Question, answers []types.Answer) {
	labels := make(map[string]string, len(questions))
	for _, q := range questions {
		labels[q.ID] = q.Label
	}

	var sb strings.Builder
	for _, a := range answers {
		label := labels[a.QuestionID]
		if label == "" {
			label = a.QuestionID
		}
		switch {
		case a.Skipped():
			sb.WriteString(fmt.Sprintf("• %s: (skipped)\n", label))
		case a.FileKey != "":
			sb.WriteString(fmt.Sprintf("• %s: file %s\n", label, a.FileKey))
		default:
			sb.WriteString(fmt.Sprintf("• %s: %s [%s]\n", label, a.Value, a.Provenance))
		}
	}
	if len(answers) == 0 {
		sb.WriteString("No answers.\n")
	}

	p.printBox(fmt.Sprintf("SYNTHESIZED ANSWERS (%d)", len(answers)), strings.TrimRight(sb.String(), "\n"))
}

// PrintAttempt outputs an attempt summary.
func (p *Printer) PrintAttempt(attempt *types.ApplicationAttempt) {
	if attempt == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID:       %s\n", attempt.ID))
	sb.WriteString(fmt.Sprintf("Listing:  %s @ %s\n", attempt.Listing.Title, attempt.Listing.Company))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", attempt.Status))
	if attempt.Cause != "" {
		sb.WriteString(fmt.Sprintf("Cause:    %s\n", attempt.Cause))
	}
	sb.WriteString(fmt.Sprintf("Answers:  %d (%d skipped)\n", len(attempt.Answers), countSkipped(attempt.Answers)))

	p.printBox("APPLICATION ATTEMPT", strings.TrimRight(sb.String(), "\n"))
}

func countSkipped(answers []types.Answer) int {
	n := 0
	for _, a := range answers {
		if a.Skipped() {
			n++
		}
	}
	return n
}
