// Package ledger is the durable record of application attempts. Every
// attempt is persisted before the pipeline starts working on it, so a
// crash mid-attempt leaves an inspectable row rather than silence.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/instant-apply/internal/types"
)

// ErrDuplicateActiveAttempt reports that the user already has a
// non-terminal attempt for the listing.
var ErrDuplicateActiveAttempt = errors.New("an active attempt already exists for this listing")

// ErrAttemptNotFound reports that no attempt matches the given ID.
var ErrAttemptNotFound = errors.New("attempt not found")

// ErrInvalidTransition reports a status update the state machine forbids.
var ErrInvalidTransition = errors.New("status transition not allowed")

const uniqueViolationCode = "23505"

// Ledger persists attempts in PostgreSQL.
type Ledger struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool.
func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Connect opens a pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

// InitSchema creates the ledger tables and indexes if missing.
func (l *Ledger) InitSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return nil
}

// CreateAttempt records a new attempt in the created state and appends
// its first status event. Returns ErrDuplicateActiveAttempt when the
// user already has a non-terminal attempt for the listing.
func (l *Ledger) CreateAttempt(ctx context.Context, userID uuid.UUID, listing types.Listing, profile types.UserProfileSnapshot) (*types.ApplicationAttempt, error) {
	attempt := &types.ApplicationAttempt{
		ID:        uuid.New(),
		UserID:    userID,
		Listing:   listing,
		Profile:   profile,
		Status:    types.StatusCreated,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	listingJSON, err := json.Marshal(listing)
	if err != nil {
		return nil, fmt.Errorf("failed to encode listing: %w", err)
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile snapshot: %w", err)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO application_attempts
			(id, user_id, listing_source, listing_external_id, listing, profile, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		attempt.ID, userID, listing.Source, listing.ExternalID,
		listingJSON, profileJSON, attempt.Status, attempt.CreatedAt,
	)
	if err != nil {
		if isActiveAttemptViolation(err) {
			return nil, ErrDuplicateActiveAttempt
		}
		return nil, fmt.Errorf("failed to insert attempt: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO attempt_events (attempt_id, status, at) VALUES ($1, $2, $3)`,
		attempt.ID, attempt.Status, attempt.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert status event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit attempt: %w", err)
	}
	return attempt, nil
}

// SaveQuestions stores an attempt's discovered question set.
func (l *Ledger) SaveQuestions(ctx context.Context, attemptID uuid.UUID, questions []types.Question) error {
	return l.saveJSONColumn(ctx, attemptID, "questions", questions)
}

// SaveAnswers stores an attempt's synthesized answers.
func (l *Ledger) SaveAnswers(ctx context.Context, attemptID uuid.UUID, answers []types.Answer) error {
	return l.saveJSONColumn(ctx, attemptID, "answers", answers)
}

func (l *Ledger) saveJSONColumn(ctx context.Context, attemptID uuid.UUID, column string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", column, err)
	}
	query := fmt.Sprintf(
		`UPDATE application_attempts SET %s = $1, updated_at = now() WHERE id = $2`, column)
	tag, err := l.pool.Exec(ctx, query, encoded, attemptID)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// UpdateStatus advances an attempt's status, enforcing the
// one-directional state machine, and appends the status event. cause is
// recorded for failed attempts and ignored otherwise.
func (l *Ledger) UpdateStatus(ctx context.Context, attemptID uuid.UUID, status types.AttemptStatus, cause types.FailureCause) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current types.AttemptStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM application_attempts WHERE id = $1 FOR UPDATE`,
		attemptID,
	).Scan(&current)
	if err != nil {
		if isNoRows(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to read attempt status: %w", err)
	}

	if !current.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}
	if status != types.StatusFailed {
		cause = ""
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		UPDATE application_attempts SET status = $1, cause = $2, updated_at = $3 WHERE id = $4`,
		status, string(cause), now, attemptID,
	)
	if err != nil {
		return fmt.Errorf("failed to update attempt status: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO attempt_events (attempt_id, status, cause, at) VALUES ($1, $2, $3, $4)`,
		attemptID, status, string(cause), now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert status event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}
	return nil
}

// GetAttempt loads a full attempt record.
func (l *Ledger) GetAttempt(ctx context.Context, attemptID uuid.UUID) (*types.ApplicationAttempt, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT id, user_id, listing, profile, status, cause, questions, answers, created_at, updated_at
		FROM application_attempts WHERE id = $1`, attemptID)

	attempt, err := scanAttempt(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	return attempt, nil
}

// ListByUser returns a user's attempts, newest first.
func (l *Ledger) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.ApplicationAttempt, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, user_id, listing, profile, status, cause, questions, answers, created_at, updated_at
		FROM application_attempts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*types.ApplicationAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// ListEvents returns an attempt's status history in order.
func (l *Ledger) ListEvents(ctx context.Context, attemptID uuid.UUID) ([]types.StatusEvent, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT attempt_id, status, cause, at FROM attempt_events
		WHERE attempt_id = $1 ORDER BY at, id`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status events: %w", err)
	}
	defer rows.Close()

	var events []types.StatusEvent
	for rows.Next() {
		var ev types.StatusEvent
		var cause string
		if err := rows.Scan(&ev.AttemptID, &ev.Status, &cause, &ev.At); err != nil {
			return nil, fmt.Errorf("failed to scan status event: %w", err)
		}
		ev.Cause = types.FailureCause(cause)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// scanner matches both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row scanner) (*types.ApplicationAttempt, error) {
	var (
		attempt       types.ApplicationAttempt
		cause         string
		listingJSON   []byte
		profileJSON   []byte
		questionsJSON []byte
		answersJSON   []byte
	)
	err := row.Scan(
		&attempt.ID, &attempt.UserID, &listingJSON, &profileJSON,
		&attempt.Status, &cause, &questionsJSON, &answersJSON,
		&attempt.CreatedAt, &attempt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	attempt.Cause = types.FailureCause(cause)

	if err := json.Unmarshal(listingJSON, &attempt.Listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	if err := json.Unmarshal(profileJSON, &attempt.Profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if len(questionsJSON) > 0 {
		if err := json.Unmarshal(questionsJSON, &attempt.Questions); err != nil {
			return nil, fmt.Errorf("failed to decode questions: %w", err)
		}
	}
	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &attempt.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers: %w", err)
		}
	}
	return &attempt, nil
}

// isActiveAttemptViolation reports whether an error is the partial
// unique index rejecting a second active attempt.
func isActiveAttemptViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolationCode &&
		pgErr.ConstraintName == "application_attempts_one_active"
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
