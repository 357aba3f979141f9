package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/instant-apply/internal/types"
)

func TestActiveAttemptViolationMapping(t *testing.T) {
	violation := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "application_attempts_one_active",
	}
	assert.True(t, isActiveAttemptViolation(violation))
	assert.True(t, isActiveAttemptViolation(fmt.Errorf("insert failed: %w", violation)))

	otherUnique := &pgconn.PgError{Code: "23505", ConstraintName: "application_attempts_pkey"}
	assert.False(t, isActiveAttemptViolation(otherUnique))

	notNull := &pgconn.PgError{Code: "23502"}
	assert.False(t, isActiveAttemptViolation(notNull))

	assert.False(t, isActiveAttemptViolation(errors.New("connection refused")))
	assert.False(t, isActiveAttemptViolation(nil))
}

// testLedger connects to the database named by DATABASE_URL, or skips.
func testLedger(t *testing.T) *Ledger {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping database integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	l := New(pool)
	require.NoError(t, l.InitSchema(ctx))
	return l
}

func testListing() types.Listing {
	return types.Listing{
		Source:     "jsearch",
		ExternalID: uuid.NewString(),
		Title:      "Backend Engineer",
		Company:    "Example Corp",
		Location:   "Remote",
		URL:        "https://jobs.example.com/backend",
	}
}

func testSnapshot(userID uuid.UUID) types.UserProfileSnapshot {
	return types.UserProfileSnapshot{
		UserID:  userID,
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Skills:  []string{"Go", "PostgreSQL"},
		TakenAt: time.Now().UTC(),
	}
}

func TestCreateAndGetAttempt(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	userID := uuid.New()
	listing := testListing()

	attempt, err := l.CreateAttempt(ctx, userID, listing, testSnapshot(userID))
	require.NoError(t, err)
	assert.Equal(t, types.StatusCreated, attempt.Status)

	loaded, err := l.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, loaded.ID)
	assert.Equal(t, listing.Identity(), loaded.Listing.Identity())
	assert.Equal(t, "Ada Lovelace", loaded.Profile.Name)

	events, err := l.ListEvents(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.StatusCreated, events[0].Status)
}

func TestDuplicateActiveAttemptRejected(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	userID := uuid.New()
	listing := testListing()
	snapshot := testSnapshot(userID)

	first, err := l.CreateAttempt(ctx, userID, listing, snapshot)
	require.NoError(t, err)

	_, err = l.CreateAttempt(ctx, userID, listing, snapshot)
	assert.ErrorIs(t, err, ErrDuplicateActiveAttempt)

	// A terminal first attempt frees the slot.
	require.NoError(t, l.UpdateStatus(ctx, first.ID, types.StatusExtracting, ""))
	require.NoError(t, l.UpdateStatus(ctx, first.ID, types.StatusFailed, types.CauseNoForm))

	_, err = l.CreateAttempt(ctx, userID, listing, snapshot)
	assert.NoError(t, err)
}

func TestStatusTransitionsEnforced(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	userID := uuid.New()
	attempt, err := l.CreateAttempt(ctx, userID, testListing(), testSnapshot(userID))
	require.NoError(t, err)

	// Skipping a stage is rejected.
	err = l.UpdateStatus(ctx, attempt.ID, types.StatusSubmitting, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, status := range []types.AttemptStatus{
		types.StatusExtracting, types.StatusAnswering,
		types.StatusFilling, types.StatusSubmitting, types.StatusSubmitted,
	} {
		require.NoError(t, l.UpdateStatus(ctx, attempt.ID, status, ""))
	}

	// Going backwards is rejected.
	err = l.UpdateStatus(ctx, attempt.ID, types.StatusExtracting, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Observed states follow submitted.
	require.NoError(t, l.UpdateStatus(ctx, attempt.ID, types.StatusInterview, ""))

	events, err := l.ListEvents(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Len(t, events, 7)
	assert.Equal(t, types.StatusInterview, events[len(events)-1].Status)
}

func TestFailureCauseRecordedOnlyForFailed(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	userID := uuid.New()
	attempt, err := l.CreateAttempt(ctx, userID, testListing(), testSnapshot(userID))
	require.NoError(t, err)

	// Cause on a non-failed transition is dropped.
	require.NoError(t, l.UpdateStatus(ctx, attempt.ID, types.StatusExtracting, types.CauseTimeout))
	loaded, err := l.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Cause)

	require.NoError(t, l.UpdateStatus(ctx, attempt.ID, types.StatusFailed, types.CauseUnreachable))
	loaded, err = l.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CauseUnreachable, loaded.Cause)
}

func TestSaveQuestionsAndAnswers(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	userID := uuid.New()
	attempt, err := l.CreateAttempt(ctx, userID, testListing(), testSnapshot(userID))
	require.NoError(t, err)

	questions := []types.Question{{
		ID: uuid.NewString(), Label: "Email", Kind: types.KindText,
		FieldID: "email", Selector: `input[name="email"]`,
	}}
	require.NoError(t, l.SaveQuestions(ctx, attempt.ID, questions))

	answers := []types.Answer{{
		ID: uuid.NewString(), QuestionID: questions[0].ID,
		Value: "ada@example.com", Provenance: types.ProvenanceProfile,
	}}
	require.NoError(t, l.SaveAnswers(ctx, attempt.ID, answers))

	loaded, err := l.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Questions, 1)
	require.Len(t, loaded.Answers, 1)
	assert.Equal(t, "ada@example.com", loaded.Answers[0].Value)
	assert.Equal(t, types.ProvenanceProfile, loaded.Answers[0].Provenance)
}

func TestListByUserNewestFirst(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	userID := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := l.CreateAttempt(ctx, userID, testListing(), testSnapshot(userID))
		require.NoError(t, err)
	}

	attempts, err := l.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	for i := 1; i < len(attempts); i++ {
		assert.False(t, attempts[i].CreatedAt.After(attempts[i-1].CreatedAt))
	}
}

func TestGetAttemptNotFound(t *testing.T) {
	l := testLedger(t)
	_, err := l.GetAttempt(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}
