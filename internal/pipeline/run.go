// Package pipeline orchestrates one application attempt end to end:
// extract the form, synthesize answers, fill and submit, and record
// every stage in the ledger. Stages run strictly in order; cancellation
// and timeouts are observed at stage boundaries only so a stage never
// half-completes from the ledger's point of view.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/instant-apply/internal/browser"
	"github.com/jonathan/instant-apply/internal/forms"
	"github.com/jonathan/instant-apply/internal/ledger"
	"github.com/jonathan/instant-apply/internal/submission"
	"github.com/jonathan/instant-apply/internal/types"
)

// Session is the per-attempt browser surface: the extractor's pager plus
// the driver's form, torn down once per attempt. *browser.Session
// implements it.
type Session interface {
	forms.Pager
	Fill(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	SetChecked(ctx context.Context, selector string, checked bool) error
	Upload(ctx context.Context, selector, path string) error
	CurrentURL(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
	Responses() []browser.ResponseEvent
	ResetResponses()
	Close()
}

// Store is the ledger surface the runner needs. *ledger.Ledger
// implements it.
type Store interface {
	CreateAttempt(ctx context.Context, userID uuid.UUID, listing types.Listing, profile types.UserProfileSnapshot) (*types.ApplicationAttempt, error)
	SaveQuestions(ctx context.Context, attemptID uuid.UUID, questions []types.Question) error
	SaveAnswers(ctx context.Context, attemptID uuid.UUID, answers []types.Answer) error
	UpdateStatus(ctx context.Context, attemptID uuid.UUID, status types.AttemptStatus, cause types.FailureCause) error
	GetAttempt(ctx context.Context, attemptID uuid.UUID) (*types.ApplicationAttempt, error)
}

// ProfileSource freezes a user's profile at attempt start.
type ProfileSource interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (types.UserProfileSnapshot, error)
}

// Answerer synthesizes answers for a question set.
type Answerer interface {
	SynthesizeAll(ctx context.Context, questions []types.Question, profile types.UserProfileSnapshot) []types.Answer
}

// Submitter drives a form to submission in two phases: Fill writes the
// answers and walks the wizard, Submit clicks the final control and
// confirms the result. Each phase runs under its own stage timeout.
type Submitter interface {
	Fill(ctx context.Context, pages []forms.Page, questions []types.Question, answers map[string]types.Answer) error
	Submit(ctx context.Context) (*submission.Outcome, error)
}

// StageTimeouts bound each pipeline stage independently. A zero value
// leaves that stage bounded only by the attempt context.
type StageTimeouts struct {
	Extract time.Duration
	Answer  time.Duration
	Fill    time.Duration
	Submit  time.Duration
}

// DefaultStageTimeouts returns bounds suited to slow job-board pages.
func DefaultStageTimeouts() StageTimeouts {
	return StageTimeouts{
		Extract: 2 * time.Minute,
		Answer:  2 * time.Minute,
		Fill:    3 * time.Minute,
		Submit:  1 * time.Minute,
	}
}

// Runner executes application attempts.
type Runner struct {
	store    Store
	profiles ProfileSource
	answerer Answerer

	// newSession opens an isolated browser session for one attempt.
	newSession func(ctx context.Context) (Session, error)
	// newSubmitter binds a driver to an open session.
	newSubmitter func(s Session) Submitter
	// extract discovers the form; forms.Extract in production.
	extract func(ctx context.Context, pager forms.Pager, listing types.Listing) (*forms.Result, error)

	timeouts StageTimeouts
	verbose  bool
}

// Config wires a Runner's collaborators.
type Config struct {
	Store        Store
	Profiles     ProfileSource
	Answerer     Answerer
	NewSession   func(ctx context.Context) (Session, error)
	NewSubmitter func(s Session) Submitter
	Extract      func(ctx context.Context, pager forms.Pager, listing types.Listing) (*forms.Result, error)
	Timeouts     StageTimeouts
	Verbose      bool
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	if cfg.Extract == nil {
		cfg.Extract = func(ctx context.Context, pager forms.Pager, listing types.Listing) (*forms.Result, error) {
			return forms.Extract(ctx, pager, listing, nil)
		}
	}
	return &Runner{
		store:        cfg.Store,
		profiles:     cfg.Profiles,
		answerer:     cfg.Answerer,
		newSession:   cfg.NewSession,
		newSubmitter: cfg.NewSubmitter,
		extract:      cfg.Extract,
		timeouts:     cfg.Timeouts,
		verbose:      cfg.Verbose,
	}
}

// Start freezes the user's profile and records a new attempt. It does
// not run the pipeline; callers hand the attempt to RunAttempt, usually
// via a Pool.
func (r *Runner) Start(ctx context.Context, userID uuid.UUID, listing types.Listing) (*types.ApplicationAttempt, error) {
	snapshot, err := r.profiles.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("freezing profile: %w", err)
	}
	attempt, err := r.store.CreateAttempt(ctx, userID, listing, snapshot)
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// Retry records a fresh attempt for a terminal attempt's listing, with a
// newly frozen profile snapshot. The prior attempt's record is never
// touched.
func (r *Runner) Retry(ctx context.Context, attemptID uuid.UUID) (*types.ApplicationAttempt, error) {
	prior, err := r.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !prior.Status.Terminal() {
		return nil, ledger.ErrDuplicateActiveAttempt
	}
	return r.Start(ctx, prior.UserID, prior.Listing)
}

// RunAttempt executes the pipeline for a created attempt. The returned
// error reflects the attempt's failure; the terminal status and cause
// are already persisted when RunAttempt returns.
func (r *Runner) RunAttempt(ctx context.Context, attempt *types.ApplicationAttempt) error {
	session, err := r.newSession(ctx)
	if err != nil {
		r.fail(attempt.ID, types.CauseUnreachable)
		return fmt.Errorf("opening browser session: %w", err)
	}
	defer session.Close()

	// Extract.
	if err := r.advance(ctx, attempt.ID, types.StatusExtracting); err != nil {
		return err
	}
	var result *forms.Result
	err = r.stage(ctx, r.timeouts.Extract, func(stageCtx context.Context) error {
		var stageErr error
		result, stageErr = r.extract(stageCtx, session, attempt.Listing)
		return stageErr
	})
	if err != nil {
		r.fail(attempt.ID, extractionCause(err))
		return fmt.Errorf("extracting form: %w", err)
	}
	if err := r.store.SaveQuestions(ctx, attempt.ID, result.Questions); err != nil {
		r.fail(attempt.ID, types.CauseUnreachable)
		return fmt.Errorf("saving questions: %w", err)
	}
	if r.verbose {
		log.Printf("[PIPELINE] attempt %s: %d questions on %d pages",
			attempt.ID, len(result.Questions), len(result.Pages))
	}

	// Answer.
	if err := r.advance(ctx, attempt.ID, types.StatusAnswering); err != nil {
		return err
	}
	var answers []types.Answer
	err = r.stage(ctx, r.timeouts.Answer, func(stageCtx context.Context) error {
		answers = r.answerer.SynthesizeAll(stageCtx, result.Questions, attempt.Profile)
		return stageCtx.Err()
	})
	if err != nil {
		r.fail(attempt.ID, types.CauseTimeout)
		return fmt.Errorf("synthesizing answers: %w", err)
	}
	if err := r.store.SaveAnswers(ctx, attempt.ID, answers); err != nil {
		r.fail(attempt.ID, types.CauseUnreachable)
		return fmt.Errorf("saving answers: %w", err)
	}

	// Fill. A failure here means the form could not be walked; the submit
	// control was never touched, so the cause is never ambiguous.
	if err := r.advance(ctx, attempt.ID, types.StatusFilling); err != nil {
		return err
	}
	submitter := r.newSubmitter(session)
	answerIndex := answersByQuestion(answers)
	err = r.stage(ctx, r.timeouts.Fill, func(stageCtx context.Context) error {
		return submitter.Fill(stageCtx, result.Pages, result.Questions, answerIndex)
	})
	if err != nil {
		r.fail(attempt.ID, fillCause(err))
		return fmt.Errorf("filling form: %w", err)
	}

	// Submit.
	if err := r.advance(ctx, attempt.ID, types.StatusSubmitting); err != nil {
		return err
	}
	var outcome *submission.Outcome
	err = r.stage(ctx, r.timeouts.Submit, func(stageCtx context.Context) error {
		var stageErr error
		outcome, stageErr = submitter.Submit(stageCtx)
		return stageErr
	})
	if err != nil {
		r.fail(attempt.ID, submissionCause(err))
		return fmt.Errorf("submitting application: %w", err)
	}

	if err := r.advance(ctx, attempt.ID, types.StatusSubmitted); err != nil {
		return err
	}
	if r.verbose {
		log.Printf("[PIPELINE] attempt %s submitted (%s)", attempt.ID, outcome.Signal)
	}
	return nil
}

// stage runs fn under a stage timeout.
func (r *Runner) stage(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

// advance moves the attempt forward, failing it with the canceled cause
// when the attempt context is already dead.
func (r *Runner) advance(ctx context.Context, attemptID uuid.UUID, status types.AttemptStatus) error {
	if err := ctx.Err(); err != nil {
		r.fail(attemptID, types.CauseCanceled)
		return fmt.Errorf("attempt canceled before %s: %w", status, err)
	}
	if err := r.store.UpdateStatus(ctx, attemptID, status, ""); err != nil {
		return fmt.Errorf("advancing to %s: %w", status, err)
	}
	return nil
}

// fail marks the attempt failed with a cause. The ledger write uses a
// fresh context: the attempt context may already be canceled, and a
// failure must still be recorded.
func (r *Runner) fail(attemptID uuid.UUID, cause types.FailureCause) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.store.UpdateStatus(ctx, attemptID, types.StatusFailed, cause); err != nil {
		log.Printf("[PIPELINE] failed to record failure for attempt %s: %v", attemptID, err)
	}
}

func extractionCause(err error) types.FailureCause {
	var unreachable *forms.PageUnreachableError
	switch {
	case errors.As(err, &unreachable):
		return types.CauseUnreachable
	case errors.Is(err, forms.ErrNoFormDetected):
		return types.CauseNoForm
	case errors.Is(err, context.DeadlineExceeded):
		return types.CauseTimeout
	case errors.Is(err, context.Canceled):
		return types.CauseCanceled
	default:
		return types.CauseUnreachable
	}
}

// fillCause classifies fill-phase failures. The submit control has not
// been clicked yet, so ambiguity is impossible; anything that is not a
// deadline or a cancellation means the form could not be driven.
func fillCause(err error) types.FailureCause {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.CauseTimeout
	case errors.Is(err, context.Canceled):
		return types.CauseCanceled
	default:
		return types.CauseUnreachable
	}
}

func submissionCause(err error) types.FailureCause {
	switch {
	case errors.Is(err, submission.ErrAmbiguousSubmission):
		return types.CauseAmbiguousSubmission
	case errors.Is(err, submission.ErrNoSubmitControl):
		return types.CauseNoForm
	case errors.Is(err, context.DeadlineExceeded):
		return types.CauseTimeout
	case errors.Is(err, context.Canceled):
		return types.CauseCanceled
	default:
		return types.CauseAmbiguousSubmission
	}
}

func answersByQuestion(answers []types.Answer) map[string]types.Answer {
	index := make(map[string]types.Answer, len(answers))
	for _, a := range answers {
		index[a.QuestionID] = a
	}
	return index
}
