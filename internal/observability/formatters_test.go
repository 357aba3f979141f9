package observability

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/instant-apply/internal/types"
)

func TestPrintListings(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintListings([]types.Listing{
		{Title: "Backend Engineer", Company: "Acme Corp", Location: "Remote", URL: "https://x.test/1"},
	})
	output := buf.String()

	assert.Contains(t, output, "SEARCH RESULTS (1)")
	assert.Contains(t, output, "Backend Engineer")
	assert.Contains(t, output, "Acme Corp")
}

func TestPrintListings_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintListings(nil)
	assert.Contains(t, buf.String(), "No listings found")
}

func TestPrintAnswers(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	q := types.Question{ID: uuid.NewString(), Label: "Email"}
	skippedQ := types.Question{ID: uuid.NewString(), Label: "Why us?"}
	p.PrintAnswers(
		[]types.Question{q, skippedQ},
		[]types.Answer{
			{QuestionID: q.ID, Value: "ada@example.com", Provenance: types.ProvenanceProfile},
			{QuestionID: skippedQ.ID, Provenance: types.ProvenanceSkipped},
		},
	)
	output := buf.String()

	assert.Contains(t, output, "ada@example.com")
	assert.Contains(t, output, "(skipped)")
}

func TestPrintAttempt(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintAttempt(&types.ApplicationAttempt{
		ID:      uuid.New(),
		Listing: types.Listing{Title: "Backend Engineer", Company: "Acme"},
		Status:  types.StatusFailed,
		Cause:   types.CauseAmbiguousSubmission,
	})
	output := buf.String()

	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "ambiguous_submission")
}

func TestPrintAttempt_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintAttempt(nil)
	assert.Empty(t, buf.String())
}
