package answering

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/instant-apply/internal/llm"
	"github.com/jonathan/instant-apply/internal/types"
)

// ErrGenerationUnavailable reports that the generative backend could
// not serve a question. Callers treat it as a degradation signal, not a
// hard failure: the question's answer is recorded as skipped.
var ErrGenerationUnavailable = errors.New("generative backend unavailable")

// fallbackAnswer fills open-ended questions when the backend responds
// with empty text. Never used to mask a skipped answer.
const fallbackAnswer = "I am excited about this opportunity."

// Options tune synthesis behavior.
type Options struct {
	// GenerationTimeout bounds a single generative call. Zero means
	// the caller's context deadline is the only bound.
	GenerationTimeout time.Duration
	// MaxConcurrent bounds in-flight generative calls across all
	// attempts sharing this synthesizer.
	MaxConcurrent int64
	// Verbose enables progress logging.
	Verbose bool
}

// DefaultOptions returns the synthesis defaults.
func DefaultOptions() *Options {
	return &Options{
		GenerationTimeout: 30 * time.Second,
		MaxConcurrent:     4,
	}
}

// Synthesizer produces answers for form questions. Deterministic
// profile matches never touch the generative backend; everything else
// goes through the bounded LLM path and degrades to a skipped answer
// on failure.
type Synthesizer struct {
	client llm.Client
	sem    *semaphore.Weighted
	opts   *Options
}

// New creates a synthesizer. client may be nil, in which case every
// question that would need generation is skipped.
func New(client llm.Client, opts *Options) *Synthesizer {
	if opts == nil {
		opts = DefaultOptions()
	}
	inflight := opts.MaxConcurrent
	if inflight <= 0 {
		inflight = 1
	}
	return &Synthesizer{
		client: client,
		sem:    semaphore.NewWeighted(inflight),
		opts:   opts,
	}
}

// SynthesizeAll answers every question in order. The result always has
// one answer per question; unanswerable questions carry the skipped
// provenance so the submission driver knows to leave them blank.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, questions []types.Question, profile types.UserProfileSnapshot) []types.Answer {
	answers := make([]types.Answer, 0, len(questions))
	for _, q := range questions {
		answers = append(answers, s.Synthesize(ctx, q, profile))
	}
	return answers
}

// Synthesize answers a single question.
func (s *Synthesizer) Synthesize(ctx context.Context, q types.Question, profile types.UserProfileSnapshot) types.Answer {
	if q.Kind == types.KindFile {
		return types.Answer{
			ID:         uuid.NewString(),
			QuestionID: q.ID,
			FileKey:    profile.ResumeFileKey,
			Provenance: types.ProvenanceFile,
		}
	}

	if answer, ok := s.deterministic(q, profile); ok {
		return answer
	}

	answer, err := s.generate(ctx, q, profile)
	if err != nil {
		if s.opts.Verbose {
			log.Printf("[ANSWER] skipping %q: %v", q.Label, err)
		}
		return skipped(q)
	}
	return answer
}

// deterministic attempts a profile-backed answer. The second return is
// false when the question needs the generative path.
func (s *Synthesizer) deterministic(q types.Question, profile types.UserProfileSnapshot) (types.Answer, bool) {
	bucket := classifyLabel(q.Label)
	if bucket == bucketNone {
		return types.Answer{}, false
	}

	switch q.Kind {
	case types.KindText:
		if flag, ok := profileFlag(bucket, profile); ok {
			value := "No"
			if flag {
				value = "Yes"
			}
			return profileAnswer(q, value), true
		}
		if value := profileText(bucket, profile); value != "" {
			return profileAnswer(q, clampLength(value, q.MaxLength)), true
		}

	case types.KindBoolean, types.KindChoice:
		if flag, ok := profileFlag(bucket, profile); ok {
			target := "No"
			if flag {
				target = "Yes"
			}
			if idx := matchChoice(q.Choices, target); idx >= 0 {
				answer := profileAnswer(q, q.Choices[idx])
				answer.ChoiceIndex = &idx
				return answer, true
			}
		}

	case types.KindMultiChoice:
		if bucket == bucketSkills {
			if matched := matchSkills(q.Choices, profile.Skills); len(matched) > 0 {
				return profileAnswer(q, strings.Join(matched, ", ")), true
			}
		}
	}
	return types.Answer{}, false
}

// generate answers through the LLM under the in-flight bound and the
// per-question timeout.
func (s *Synthesizer) generate(ctx context.Context, q types.Question, profile types.UserProfileSnapshot) (types.Answer, error) {
	if s.client == nil {
		return types.Answer{}, ErrGenerationUnavailable
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return types.Answer{}, fmt.Errorf("waiting for generation slot: %w", err)
	}
	defer s.sem.Release(1)

	if s.opts.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.GenerationTimeout)
		defer cancel()
	}

	if q.IsChoice() && len(q.Choices) > 0 {
		return s.generateChoice(ctx, q, profile)
	}
	return s.generateText(ctx, q, profile)
}

func (s *Synthesizer) generateText(ctx context.Context, q types.Question, profile types.UserProfileSnapshot) (types.Answer, error) {
	prompt := buildTextPrompt(q, profile, q.MaxLength)
	text, err := s.client.GenerateText(ctx, prompt, llm.TierStandard)
	if err != nil {
		return types.Answer{}, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = fallbackAnswer
	}
	return types.Answer{
		ID:         uuid.NewString(),
		QuestionID: q.ID,
		Value:      clampLength(text, q.MaxLength),
		Provenance: types.ProvenanceGenerated,
	}, nil
}

func (s *Synthesizer) generateChoice(ctx context.Context, q types.Question, profile types.UserProfileSnapshot) (types.Answer, error) {
	prompt := buildChoicePrompt(q, profile)
	raw, err := s.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return types.Answer{}, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	idx, err := parseChoicePayload(raw, len(q.Choices))
	if err != nil {
		return types.Answer{}, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	return types.Answer{
		ID:          uuid.NewString(),
		QuestionID:  q.ID,
		Value:       q.Choices[idx],
		ChoiceIndex: &idx,
		Provenance:  types.ProvenanceGenerated,
	}, nil
}

func profileAnswer(q types.Question, value string) types.Answer {
	return types.Answer{
		ID:         uuid.NewString(),
		QuestionID: q.ID,
		Value:      value,
		Provenance: types.ProvenanceProfile,
	}
}

func skipped(q types.Question) types.Answer {
	return types.Answer{
		ID:         uuid.NewString(),
		QuestionID: q.ID,
		Provenance: types.ProvenanceSkipped,
	}
}

func clampLength(value string, maxLength int) string {
	if maxLength <= 0 {
		return value
	}
	return llm.TruncateRunes(value, maxLength)
}
