package answering

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/instant-apply/internal/llm"
	"github.com/jonathan/instant-apply/internal/types"
)

// fakeLLM records every backend invocation so tests can assert the
// deterministic path never reaches it.
type fakeLLM struct {
	textResponse string
	jsonResponse string
	err          error
	delay        time.Duration

	textCalls []string
	jsonCalls []string
}

func (f *fakeLLM) GenerateText(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.textCalls = append(f.textCalls, prompt)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.textResponse, f.err
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.jsonCalls = append(f.jsonCalls, prompt)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.jsonResponse, f.err
}

func (f *fakeLLM) Close() error { return nil }

func testProfile() types.UserProfileSnapshot {
	return types.UserProfileSnapshot{
		UserID:             uuid.New(),
		Name:               "Ada Lovelace",
		Email:              "ada@example.com",
		Phone:              "+1 555 0100",
		ResumeText:         "Analytical engine programmer with a decade of experience.",
		ResumeFileKey:      "resumes/ada.pdf",
		Skills:             []string{"Go", "PostgreSQL", "Distributed Systems"},
		Experience:         []string{"Staff Engineer at Babbage & Co"},
		BiggestAchievement: "Wrote the first published algorithm.",
		CareerGoals:        "Lead a platform engineering team.",
		NeedsSponsorship:   false,
		WillingToRelocate:  true,
		AvailableStartDate: "2026-10-01",
	}
}

func question(label string, kind types.QuestionKind, choices ...string) types.Question {
	return types.Question{
		ID:      uuid.NewString(),
		Label:   label,
		Kind:    kind,
		FieldID: strings.ToLower(strings.ReplaceAll(label, " ", "-")),
		Choices: choices,
	}
}

func TestDeterministicAnswersNeverInvokeBackend(t *testing.T) {
	backend := &fakeLLM{}
	s := New(backend, nil)
	profile := testProfile()

	questions := []types.Question{
		question("Email address", types.KindText),
		question("Phone number", types.KindText),
		question("Full name", types.KindText),
		question("Do you require visa sponsorship?", types.KindBoolean, "Yes", "No"),
		question("Are you willing to relocate?", types.KindChoice, "Yes", "No", "Maybe"),
		question("When can you start? (start date)", types.KindText),
	}

	answers := s.SynthesizeAll(context.Background(), questions, profile)
	require.Len(t, answers, len(questions))

	assert.Empty(t, backend.textCalls, "deterministic answers must not call the text backend")
	assert.Empty(t, backend.jsonCalls, "deterministic answers must not call the JSON backend")

	for _, a := range answers {
		assert.Equal(t, types.ProvenanceProfile, a.Provenance)
	}
	assert.Equal(t, "ada@example.com", answers[0].Value)
	assert.Equal(t, "+1 555 0100", answers[1].Value)
	assert.Equal(t, "Ada Lovelace", answers[2].Value)

	require.NotNil(t, answers[3].ChoiceIndex)
	assert.Equal(t, "No", answers[3].Value)
	assert.Equal(t, 1, *answers[3].ChoiceIndex)

	require.NotNil(t, answers[4].ChoiceIndex)
	assert.Equal(t, "Yes", answers[4].Value)
	assert.Equal(t, 0, *answers[4].ChoiceIndex)

	assert.Equal(t, "2026-10-01", answers[5].Value)
}

func TestSynthesizeAllAnswersEveryQuestion(t *testing.T) {
	backend := &fakeLLM{textResponse: "I build reliable systems."}
	s := New(backend, nil)

	questions := []types.Question{
		question("Email address", types.KindText),
		question("Why do you want to work here?", types.KindText),
		question("Describe a project you are proud of", types.KindText),
		question("Upload your resume", types.KindFile),
	}

	answers := s.SynthesizeAll(context.Background(), questions, testProfile())
	require.Len(t, answers, 4)

	byQuestion := map[string]types.Answer{}
	fileAnswers := 0
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
		if a.Provenance == types.ProvenanceFile {
			fileAnswers++
		}
	}
	require.Len(t, byQuestion, 4, "every question gets exactly one answer")
	assert.Equal(t, 1, fileAnswers)

	resume := byQuestion[questions[3].ID]
	assert.Equal(t, types.ProvenanceFile, resume.Provenance)
	assert.Equal(t, "resumes/ada.pdf", resume.FileKey)

	for _, q := range questions[:3] {
		assert.NotEmpty(t, byQuestion[q.ID].Value)
		assert.Empty(t, byQuestion[q.ID].FileKey)
	}
}

func TestFileQuestionCarriesResumeKey(t *testing.T) {
	backend := &fakeLLM{}
	s := New(backend, nil)

	q := question("Upload your resume", types.KindFile)
	a := s.Synthesize(context.Background(), q, testProfile())

	assert.Equal(t, types.ProvenanceFile, a.Provenance)
	assert.Equal(t, "resumes/ada.pdf", a.FileKey)
	assert.Empty(t, a.Value)
	assert.Empty(t, backend.textCalls)
}

func TestGenerativeTextAnswer(t *testing.T) {
	backend := &fakeLLM{textResponse: "I led the migration of a monolith to services."}
	s := New(backend, nil)

	q := question("Describe a challenging project you delivered", types.KindText)
	a := s.Synthesize(context.Background(), q, testProfile())

	assert.Equal(t, types.ProvenanceGenerated, a.Provenance)
	assert.Equal(t, "I led the migration of a monolith to services.", a.Value)
	require.Len(t, backend.textCalls, 1)
	assert.Contains(t, backend.textCalls[0], q.Label)
	assert.Contains(t, backend.textCalls[0], "Go, PostgreSQL")
}

func TestGenerativeAnswerRespectsMaxLength(t *testing.T) {
	backend := &fakeLLM{textResponse: strings.Repeat("a", 500)}
	s := New(backend, nil)

	q := question("Tell us about yourself", types.KindText)
	q.MaxLength = 100
	a := s.Synthesize(context.Background(), q, testProfile())

	assert.Equal(t, types.ProvenanceGenerated, a.Provenance)
	assert.Len(t, a.Value, 100)
	require.Len(t, backend.textCalls, 1)
	assert.Contains(t, backend.textCalls[0], "at most 100 characters")
}

func TestGenerativeChoiceAnswer(t *testing.T) {
	backend := &fakeLLM{jsonResponse: `{"choice": 2}`}
	s := New(backend, nil)

	q := question("Which shift do you prefer?", types.KindChoice, "Morning", "Evening", "Flexible")
	a := s.Synthesize(context.Background(), q, testProfile())

	assert.Equal(t, types.ProvenanceGenerated, a.Provenance)
	assert.Equal(t, "Flexible", a.Value)
	require.NotNil(t, a.ChoiceIndex)
	assert.Equal(t, 2, *a.ChoiceIndex)
	assert.Empty(t, backend.textCalls)
	require.Len(t, backend.jsonCalls, 1)
}

func TestOutOfRangeChoiceIsSkipped(t *testing.T) {
	backend := &fakeLLM{jsonResponse: `{"choice": 9}`}
	s := New(backend, nil)

	q := question("Which shift do you prefer?", types.KindChoice, "Morning", "Evening")
	a := s.Synthesize(context.Background(), q, testProfile())

	assert.Equal(t, types.ProvenanceSkipped, a.Provenance)
	assert.True(t, a.Skipped())
}

func TestBackendFailureDegradesToSkipped(t *testing.T) {
	backend := &fakeLLM{err: errors.New("quota exhausted")}
	s := New(backend, nil)

	q := question("Why do you want this role?", types.KindText)
	a := s.Synthesize(context.Background(), q, testProfile())

	assert.Equal(t, types.ProvenanceSkipped, a.Provenance)
	assert.Empty(t, a.Value)
}

func TestGenerationTimeoutDegradesToSkipped(t *testing.T) {
	backend := &fakeLLM{textResponse: "too late", delay: 200 * time.Millisecond}
	s := New(backend, &Options{GenerationTimeout: 20 * time.Millisecond, MaxConcurrent: 1})

	q := question("Why do you want this role?", types.KindText)
	a := s.Synthesize(context.Background(), q, testProfile())

	assert.Equal(t, types.ProvenanceSkipped, a.Provenance)
}

func TestNilClientSkipsGenerativeQuestions(t *testing.T) {
	s := New(nil, nil)

	answers := s.SynthesizeAll(context.Background(), []types.Question{
		question("Email address", types.KindText),
		question("Why do you want this role?", types.KindText),
	}, testProfile())

	require.Len(t, answers, 2)
	assert.Equal(t, types.ProvenanceProfile, answers[0].Provenance)
	assert.Equal(t, types.ProvenanceSkipped, answers[1].Provenance)
}

func TestPortfolioAnswerComesFromProfile(t *testing.T) {
	backend := &fakeLLM{}
	s := New(backend, nil)
	profile := testProfile()
	profile.PortfolioLinks = []string{"https://github.com/ada", "https://ada.dev"}

	a := s.Synthesize(context.Background(), question("GitHub or portfolio URL", types.KindText), profile)

	assert.Equal(t, types.ProvenanceProfile, a.Provenance)
	assert.Equal(t, "https://github.com/ada, https://ada.dev", a.Value)
	assert.Empty(t, backend.textCalls)
}

func TestEmptyGenerationFallsBackToStockAnswer(t *testing.T) {
	backend := &fakeLLM{textResponse: "   "}
	s := New(backend, nil)

	a := s.Synthesize(context.Background(), question("Why do you want this job?", types.KindText), testProfile())

	assert.Equal(t, types.ProvenanceGenerated, a.Provenance)
	assert.Equal(t, "I am excited about this opportunity.", a.Value)
}

func TestSkillsMultiChoiceIntersection(t *testing.T) {
	backend := &fakeLLM{}
	s := New(backend, nil)

	q := question("Which of these skills do you have?", types.KindMultiChoice,
		"Go", "Rust", "PostgreSQL", "Kubernetes")
	a := s.Synthesize(context.Background(), q, testProfile())

	assert.Equal(t, types.ProvenanceProfile, a.Provenance)
	assert.Equal(t, "Go, PostgreSQL", a.Value)
	assert.Empty(t, backend.jsonCalls)
}

func TestParseChoicePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		options int
		want    int
		wantErr bool
	}{
		{"valid", `{"choice": 1}`, 3, 1, false},
		{"zero", `{"choice": 0}`, 1, 0, false},
		{"out of range", `{"choice": 3}`, 3, 0, true},
		{"negative", `{"choice": -1}`, 3, 0, true},
		{"missing key", `{"pick": 1}`, 3, 0, true},
		{"extra key", `{"choice": 1, "why": "x"}`, 3, 0, true},
		{"not json", `pick the first`, 3, 0, true},
		{"wrong type", `{"choice": "1"}`, 3, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChoicePayload(tt.raw, tt.options)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyLabel(t *testing.T) {
	tests := []struct {
		label string
		want  profileBucket
	}{
		{"Email address", bucketEmail},
		{"Work e-mail", bucketEmail},
		{"What is your greatest strength?", bucketStrength},
		{"Do you require visa sponsorship?", bucketSponsorship},
		{"Are you legally authorized to work in the US?", bucketAuthorization},
		{"Are you open to relocation?", bucketRelocation},
		{"Describe your professional background", bucketExperience},
		{"GitHub or portfolio link", bucketPortfolio},
		{"List any relevant certifications", bucketCertification},
		{"What languages do you speak?", bucketLanguages},
		{"Favorite color", bucketNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyLabel(tt.label), tt.label)
	}
}
