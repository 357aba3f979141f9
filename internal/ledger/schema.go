package ledger

// schemaSQL creates the ledger tables. The partial unique index enforces
// the one-active-attempt invariant at the storage layer: two racing
// creates for the same user and listing cannot both insert a non-terminal
// row, regardless of application-level checks.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS application_attempts (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	listing_source TEXT NOT NULL,
	listing_external_id TEXT NOT NULL,
	listing JSONB NOT NULL,
	profile JSONB NOT NULL,
	status TEXT NOT NULL,
	cause TEXT NOT NULL DEFAULT '',
	questions JSONB,
	answers JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS application_attempts_one_active
	ON application_attempts (user_id, listing_source, listing_external_id)
	WHERE status IN ('created', 'extracting', 'answering', 'filling', 'submitting');

CREATE INDEX IF NOT EXISTS application_attempts_by_user
	ON application_attempts (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS attempt_events (
	id BIGSERIAL PRIMARY KEY,
	attempt_id UUID NOT NULL REFERENCES application_attempts(id) ON DELETE CASCADE,
	status TEXT NOT NULL,
	cause TEXT NOT NULL DEFAULT '',
	at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS attempt_events_by_attempt
	ON attempt_events (attempt_id, at);
`
