package submission

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/instant-apply/internal/browser"
	"github.com/jonathan/instant-apply/internal/forms"
	"github.com/jonathan/instant-apply/internal/types"
)

// fakeForm records every interaction so tests can assert ordering and
// content without a browser.
type fakeForm struct {
	actions []string

	url       string
	afterURL  string // URL returned after a submit click
	body      string
	responses []browser.ResponseEvent

	clickErr  map[string]error
	submitted bool
}

func newFakeForm() *fakeForm {
	return &fakeForm{url: "https://jobs.example.com/apply/42", clickErr: map[string]error{}}
}

func (f *fakeForm) Fill(_ context.Context, sel, value string) error {
	f.actions = append(f.actions, fmt.Sprintf("fill %s=%s", sel, value))
	return nil
}

func (f *fakeForm) SelectOption(_ context.Context, sel, value string) error {
	f.actions = append(f.actions, fmt.Sprintf("select %s=%s", sel, value))
	return nil
}

func (f *fakeForm) SetChecked(_ context.Context, sel string, checked bool) error {
	f.actions = append(f.actions, fmt.Sprintf("check %s=%t", sel, checked))
	return nil
}

func (f *fakeForm) Upload(_ context.Context, sel, path string) error {
	f.actions = append(f.actions, fmt.Sprintf("upload %s=%s", sel, path))
	return nil
}

func (f *fakeForm) Click(_ context.Context, sel string) error {
	if err := f.clickErr[sel]; err != nil {
		return err
	}
	f.actions = append(f.actions, "click "+sel)
	if sel == "#submit" || sel == "#finish" {
		f.submitted = true
	}
	return nil
}

func (f *fakeForm) CurrentURL(context.Context) (string, error) {
	if f.submitted && f.afterURL != "" {
		return f.afterURL, nil
	}
	return f.url, nil
}

func (f *fakeForm) BodyText(context.Context) (string, error) { return f.body, nil }

// Responses models post-submit network traffic: the staged events only
// become observable once the submit control has been clicked.
func (f *fakeForm) Responses() []browser.ResponseEvent {
	if !f.submitted {
		return nil
	}
	return f.responses
}

func (f *fakeForm) ResetResponses() {
	if f.submitted {
		f.responses = nil
	}
}

// fastOptions disables pacing so tests run instantly.
func fastOptions() *Options {
	return &Options{}
}

func textQuestion(label, selector string, page int) types.Question {
	return types.Question{
		ID:       uuid.NewString(),
		Label:    label,
		Kind:     types.KindText,
		FieldID:  selector,
		Selector: selector,
		Page:     page,
	}
}

func textAnswer(q types.Question, value string) types.Answer {
	return types.Answer{
		ID:         uuid.NewString(),
		QuestionID: q.ID,
		Value:      value,
		Provenance: types.ProvenanceProfile,
	}
}

func answerMap(answers ...types.Answer) map[string]types.Answer {
	m := make(map[string]types.Answer, len(answers))
	for _, a := range answers {
		m[a.QuestionID] = a
	}
	return m
}

// drive runs both phases back to back the way the pipeline does.
func drive(d *Driver, pages []forms.Page, questions []types.Question, answers map[string]types.Answer) (*Outcome, error) {
	if err := d.Fill(context.Background(), pages, questions, answers); err != nil {
		return nil, err
	}
	return d.Submit(context.Background())
}

func TestSubmitSinglePageConfirmedByURL(t *testing.T) {
	form := newFakeForm()
	form.afterURL = "https://jobs.example.com/apply/42/confirmation"

	q1 := textQuestion("Full name", `input[name="name"]`, 0)
	q2 := textQuestion("Email", `input[name="email"]`, 0)
	pages := []forms.Page{{Index: 0, HasSubmit: true, SubmitSelector: "#submit"}}

	d := NewDriver(form, nil, fastOptions())
	outcome, err := drive(d, pages, []types.Question{q1, q2},
		answerMap(textAnswer(q1, "Ada Lovelace"), textAnswer(q2, "ada@example.com")))
	require.NoError(t, err)

	assert.True(t, outcome.Submitted)
	assert.Equal(t, SignalURLChange, outcome.Signal)
	assert.Equal(t, 2, outcome.Filled)
	assert.Equal(t, []string{
		`fill input[name="name"]=Ada Lovelace`,
		`fill input[name="email"]=ada@example.com`,
		"click #submit",
	}, form.actions)
}

func TestSubmitConfirmedByBodyText(t *testing.T) {
	form := newFakeForm()
	form.body = "Thank you for applying! We will be in touch."

	q := textQuestion("Email", `input[name="email"]`, 0)
	pages := []forms.Page{{Index: 0, HasSubmit: true, SubmitSelector: "#submit"}}

	d := NewDriver(form, nil, fastOptions())
	outcome, err := drive(d, pages, []types.Question{q},
		answerMap(textAnswer(q, "ada@example.com")))
	require.NoError(t, err)
	assert.Equal(t, SignalConfirmationText, outcome.Signal)
}

func TestSubmitConfirmedByHTTPResponse(t *testing.T) {
	form := newFakeForm()
	form.responses = []browser.ResponseEvent{
		{URL: "https://jobs.example.com/api/applications", Status: 201},
	}

	q := textQuestion("Email", `input[name="email"]`, 0)
	pages := []forms.Page{{Index: 0, HasSubmit: true, SubmitSelector: "#submit"}}

	d := NewDriver(form, nil, fastOptions())
	outcome, err := drive(d, pages, []types.Question{q},
		answerMap(textAnswer(q, "ada@example.com")))
	require.NoError(t, err)
	assert.Equal(t, SignalHTTPResponse, outcome.Signal)
}

func TestSubmitWithoutSignalIsAmbiguous(t *testing.T) {
	form := newFakeForm()
	form.body = "Please review your application."

	q := textQuestion("Email", `input[name="email"]`, 0)
	pages := []forms.Page{{Index: 0, HasSubmit: true, SubmitSelector: "#submit"}}

	d := NewDriver(form, nil, fastOptions())
	outcome, err := drive(d, pages, []types.Question{q},
		answerMap(textAnswer(q, "ada@example.com")))

	require.ErrorIs(t, err, ErrAmbiguousSubmission)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Submitted)
	assert.Equal(t, SignalNone, outcome.Signal)
}

func TestMultiPageAdvancesThenSubmits(t *testing.T) {
	form := newFakeForm()
	form.afterURL = "https://jobs.example.com/apply/42/success"

	q1 := textQuestion("Full name", `input[name="name"]`, 0)
	q2 := textQuestion("Cover letter", `textarea[name="cover"]`, 1)
	pages := []forms.Page{
		{Index: 0, ContinueSelector: "#next"},
		{Index: 1, HasSubmit: true, SubmitSelector: "#submit"},
	}

	d := NewDriver(form, nil, fastOptions())
	outcome, err := drive(d, pages, []types.Question{q1, q2},
		answerMap(textAnswer(q1, "Ada Lovelace"), textAnswer(q2, "Dear team")))
	require.NoError(t, err)

	assert.True(t, outcome.Submitted)
	assert.Equal(t, []string{
		`fill input[name="name"]=Ada Lovelace`,
		"click #next",
		`fill textarea[name="cover"]=Dear team`,
		"click #submit",
	}, form.actions)
}

func TestSkippedAnswersAreLeftBlank(t *testing.T) {
	form := newFakeForm()
	form.afterURL = "https://jobs.example.com/apply/42/success"

	q1 := textQuestion("Email", `input[name="email"]`, 0)
	q2 := textQuestion("Why us?", `textarea[name="why"]`, 0)
	skippedAnswer := types.Answer{
		ID:         uuid.NewString(),
		QuestionID: q2.ID,
		Provenance: types.ProvenanceSkipped,
	}
	pages := []forms.Page{{Index: 0, HasSubmit: true, SubmitSelector: "#submit"}}

	d := NewDriver(form, nil, fastOptions())
	outcome, err := drive(d, pages, []types.Question{q1, q2},
		answerMap(textAnswer(q1, "ada@example.com"), skippedAnswer))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Filled)
	assert.Equal(t, 1, outcome.SkippedAnswers)
	assert.NotContains(t, form.actions, `fill textarea[name="why"]=`)
}

func TestChoiceAndFileFieldKinds(t *testing.T) {
	form := newFakeForm()
	form.afterURL = "https://jobs.example.com/apply/42/success"

	radio := types.Question{
		ID:              uuid.NewString(),
		Label:           "Do you require sponsorship?",
		Kind:            types.KindBoolean,
		Selector:        `input[name="sponsor"]`,
		Choices:         []string{"Yes", "No"},
		ChoiceSelectors: []string{"#sponsor-yes", "#sponsor-no"},
		Page:            0,
	}
	dropdown := types.Question{
		ID:           uuid.NewString(),
		Label:        "Notice period",
		Kind:         types.KindChoice,
		Selector:     `select[name="notice"]`,
		Choices:      []string{"Immediately", "Two weeks"},
		ChoiceValues: []string{"now", "2w"},
		Page:         0,
	}
	file := types.Question{
		ID:       uuid.NewString(),
		Label:    "Upload your resume",
		Kind:     types.KindFile,
		Selector: `input[name="resume"]`,
		Page:     0,
	}
	pages := []forms.Page{{Index: 0, HasSubmit: true, SubmitSelector: "#submit"}}

	one := 1
	answers := answerMap(
		types.Answer{ID: uuid.NewString(), QuestionID: radio.ID, Value: "No", ChoiceIndex: &one, Provenance: types.ProvenanceProfile},
		types.Answer{ID: uuid.NewString(), QuestionID: dropdown.ID, Value: "Two weeks", ChoiceIndex: &one, Provenance: types.ProvenanceGenerated},
		types.Answer{ID: uuid.NewString(), QuestionID: file.ID, FileKey: "resumes/ada.pdf", Provenance: types.ProvenanceFile},
	)

	resolver := func(key string) (string, error) {
		assert.Equal(t, "resumes/ada.pdf", key)
		return "/tmp/ada.pdf", nil
	}

	d := NewDriver(form, resolver, fastOptions())
	outcome, err := drive(d, pages, []types.Question{radio, dropdown, file}, answers)
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Filled)

	assert.Contains(t, form.actions, "check #sponsor-no=true")
	assert.Contains(t, form.actions, `select select[name="notice"]=2w`)
	assert.Contains(t, form.actions, `upload input[name="resume"]=/tmp/ada.pdf`)
}

func TestMultiChoiceChecksMatchingOptions(t *testing.T) {
	form := newFakeForm()
	form.afterURL = "https://jobs.example.com/apply/42/success"

	q := types.Question{
		ID:              uuid.NewString(),
		Label:           "Which of these skills do you have?",
		Kind:            types.KindMultiChoice,
		Selector:        `input[name="skills"]`,
		Choices:         []string{"Go", "Rust", "PostgreSQL"},
		ChoiceSelectors: []string{"#skill-go", "#skill-rust", "#skill-pg"},
		Page:            0,
	}
	pages := []forms.Page{{Index: 0, HasSubmit: true, SubmitSelector: "#submit"}}

	answers := answerMap(types.Answer{
		ID: uuid.NewString(), QuestionID: q.ID,
		Value: "Go, PostgreSQL", Provenance: types.ProvenanceProfile,
	})

	d := NewDriver(form, nil, fastOptions())
	_, err := drive(d, pages, []types.Question{q}, answers)
	require.NoError(t, err)

	assert.Contains(t, form.actions, "check #skill-go=true")
	assert.Contains(t, form.actions, "check #skill-pg=true")
	assert.NotContains(t, form.actions, "check #skill-rust=true")
}

func TestFillParksOnFinalPageWithoutSubmitting(t *testing.T) {
	form := newFakeForm()
	form.afterURL = "https://jobs.example.com/apply/42/success"

	q1 := textQuestion("Full name", `input[name="name"]`, 0)
	q2 := textQuestion("Cover letter", `textarea[name="cover"]`, 1)
	pages := []forms.Page{
		{Index: 0, ContinueSelector: "#next"},
		{Index: 1, HasSubmit: true, SubmitSelector: "#submit"},
	}

	d := NewDriver(form, nil, fastOptions())
	require.NoError(t, d.Fill(context.Background(), pages, []types.Question{q1, q2},
		answerMap(textAnswer(q1, "Ada Lovelace"), textAnswer(q2, "Dear team"))))

	// Fill advanced the wizard but never touched the submit control.
	assert.Contains(t, form.actions, "click #next")
	assert.NotContains(t, form.actions, "click #submit")
	assert.False(t, form.submitted)

	outcome, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Submitted)
	assert.Equal(t, 2, outcome.Filled)
}

func TestNoSubmitControlFails(t *testing.T) {
	form := newFakeForm()
	pages := []forms.Page{{Index: 0}}

	d := NewDriver(form, nil, fastOptions())
	_, err := drive(d, pages, nil, nil)
	assert.ErrorIs(t, err, ErrNoSubmitControl)
}

func TestSubmitWithoutPagesFails(t *testing.T) {
	form := newFakeForm()

	d := NewDriver(form, nil, fastOptions())
	require.NoError(t, d.Fill(context.Background(), nil, nil, nil))
	_, err := d.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoSubmitControl)
	assert.Empty(t, form.actions)
}

func TestContinueClickFailureAbortsFill(t *testing.T) {
	form := newFakeForm()
	form.clickErr["#next"] = errors.New("element not visible")

	pages := []forms.Page{
		{Index: 0, ContinueSelector: "#next"},
		{Index: 1, HasSubmit: true, SubmitSelector: "#submit"},
	}

	d := NewDriver(form, nil, fastOptions())
	err := d.Fill(context.Background(), pages, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advancing past page 0")
	assert.False(t, form.submitted)
}

func TestDetectSuccessPrecedence(t *testing.T) {
	responses := []browser.ResponseEvent{{URL: "https://x.test/api/apply", Status: 200}}

	// URL movement wins over everything.
	sig := DetectSuccess("https://x.test/a", "https://x.test/a/confirmation",
		"thank you for applying", responses, nil)
	assert.Equal(t, SignalURLChange, sig)

	// Unchanged URL falls through to body text.
	sig = DetectSuccess("https://x.test/a", "https://x.test/a",
		"thank you for applying", responses, nil)
	assert.Equal(t, SignalConfirmationText, sig)

	// Then to intercepted traffic.
	sig = DetectSuccess("https://x.test/a", "https://x.test/a", "", responses, nil)
	assert.Equal(t, SignalHTTPResponse, sig)

	// A non-2xx response on the endpoint is not a signal.
	sig = DetectSuccess("https://x.test/a", "https://x.test/a", "",
		[]browser.ResponseEvent{{URL: "https://x.test/api/apply", Status: 500}}, nil)
	assert.Equal(t, SignalNone, sig)
}

func TestCustomSignalSetsExtendDefaults(t *testing.T) {
	opts := &Options{
		SuccessTexts:       []string{"vielen dank für ihre bewerbung"},
		SuccessURLPatterns: []string{"danke"},
	}

	sig := DetectSuccess("https://x.test/a", "https://x.test/danke", "", nil, opts)
	assert.Equal(t, SignalURLChange, sig)

	sig = DetectSuccess("https://x.test/a", "https://x.test/a",
		"Vielen Dank für Ihre Bewerbung!", nil, opts)
	assert.Equal(t, SignalConfirmationText, sig)
}
