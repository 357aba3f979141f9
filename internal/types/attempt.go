package types

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the lifecycle state of an application attempt.
type AttemptStatus string

// Attempt lifecycle states. Transitions are one-directional; an attempt
// never re-enters an earlier state. SUBMITTED may advance to the
// externally observed states (interview, rejected, accepted) via
// out-of-band status updates only.
const (
	StatusCreated    AttemptStatus = "created"
	StatusExtracting AttemptStatus = "extracting"
	StatusAnswering  AttemptStatus = "answering"
	StatusFilling    AttemptStatus = "filling"
	StatusSubmitting AttemptStatus = "submitting"
	StatusSubmitted  AttemptStatus = "submitted"
	StatusFailed     AttemptStatus = "failed"
	StatusInterview  AttemptStatus = "interview"
	StatusRejected   AttemptStatus = "rejected"
	StatusAccepted   AttemptStatus = "accepted"
)

// FailureCause labels why a terminal attempt failed, so the status view
// can explain failures instead of a bare "error".
type FailureCause string

// Failure causes persisted with terminal attempts.
const (
	CauseUnreachable         FailureCause = "unreachable"
	CauseNoForm              FailureCause = "no_form"
	CauseTimeout             FailureCause = "timeout"
	CauseAmbiguousSubmission FailureCause = "ambiguous_submission"
	CauseCanceled            FailureCause = "canceled"
)

// transitions is the allowed one-directional state machine.
var transitions = map[AttemptStatus][]AttemptStatus{
	StatusCreated:    {StatusExtracting, StatusFailed},
	StatusExtracting: {StatusAnswering, StatusFailed},
	StatusAnswering:  {StatusFilling, StatusFailed},
	StatusFilling:    {StatusSubmitting, StatusFailed},
	StatusSubmitting: {StatusSubmitted, StatusFailed},
	StatusSubmitted:  {StatusInterview, StatusRejected, StatusAccepted},
	StatusInterview:  {StatusRejected, StatusAccepted},
}

// CanTransition reports whether moving from s to next is allowed.
func (s AttemptStatus) CanTransition(next AttemptStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the pipeline is done with an attempt in this
// state. Submitted counts as terminal for the duplicate-attempt
// invariant: only the externally observed states may follow it.
func (s AttemptStatus) Terminal() bool {
	switch s {
	case StatusSubmitted, StatusFailed, StatusInterview, StatusRejected, StatusAccepted:
		return true
	}
	return false
}

// NonTerminalStatuses lists the states covered by the
// one-active-attempt-per-listing uniqueness constraint.
func NonTerminalStatuses() []AttemptStatus {
	return []AttemptStatus{
		StatusCreated, StatusExtracting, StatusAnswering,
		StatusFilling, StatusSubmitting,
	}
}

// ApplicationAttempt aggregates one listing, one frozen profile
// snapshot, the discovered question set with its answers, and a status.
// Once terminal it is retained indefinitely for audit.
type ApplicationAttempt struct {
	ID        uuid.UUID           `json:"id"`
	UserID    uuid.UUID           `json:"user_id"`
	Listing   Listing             `json:"listing"`
	Profile   UserProfileSnapshot `json:"profile"`
	Status    AttemptStatus       `json:"status"`
	Cause     FailureCause        `json:"cause,omitempty"`
	Questions []Question          `json:"questions,omitempty"`
	Answers   []Answer            `json:"answers,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// StatusEvent is one entry in an attempt's append-only status history.
// The attempt's current status is the most recent event.
type StatusEvent struct {
	AttemptID uuid.UUID     `json:"attempt_id"`
	Status    AttemptStatus `json:"status"`
	Cause     FailureCause  `json:"cause,omitempty"`
	At        time.Time     `json:"at"`
}
