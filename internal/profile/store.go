// Package profile reads user profiles and freezes them into snapshots
// at attempt start. The pipeline only ever sees the snapshot: profile
// edits made while an attempt is in flight do not leak into it.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/instant-apply/internal/types"
)

// ErrProfileNotFound reports that no profile exists for the user.
var ErrProfileNotFound = errors.New("profile not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS user_profiles (
	user_id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	resume_text TEXT NOT NULL DEFAULT '',
	resume_file_key TEXT NOT NULL DEFAULT '',
	skills TEXT[] NOT NULL DEFAULT '{}',
	experience TEXT[] NOT NULL DEFAULT '{}',
	desired_titles TEXT[] NOT NULL DEFAULT '{}',
	portfolio_links TEXT[] NOT NULL DEFAULT '{}',
	certifications TEXT[] NOT NULL DEFAULT '{}',
	languages TEXT[] NOT NULL DEFAULT '{}',
	biggest_achievement TEXT NOT NULL DEFAULT '',
	career_goals TEXT NOT NULL DEFAULT '',
	needs_sponsorship BOOLEAN NOT NULL DEFAULT false,
	willing_to_relocate BOOLEAN NOT NULL DEFAULT false,
	available_start_date TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store reads and writes user profiles in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InitSchema creates the profile table if missing.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize profile schema: %w", err)
	}
	return nil
}

// Upsert writes a profile, replacing any existing one for the user.
func (s *Store) Upsert(ctx context.Context, p types.UserProfileSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_profiles
			(user_id, name, email, phone, resume_text, resume_file_key, skills,
			 experience, desired_titles, portfolio_links, certifications, languages,
			 biggest_achievement, career_goals,
			 needs_sponsorship, willing_to_relocate, available_start_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now())
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			resume_text = EXCLUDED.resume_text,
			resume_file_key = EXCLUDED.resume_file_key,
			skills = EXCLUDED.skills,
			experience = EXCLUDED.experience,
			desired_titles = EXCLUDED.desired_titles,
			portfolio_links = EXCLUDED.portfolio_links,
			certifications = EXCLUDED.certifications,
			languages = EXCLUDED.languages,
			biggest_achievement = EXCLUDED.biggest_achievement,
			career_goals = EXCLUDED.career_goals,
			needs_sponsorship = EXCLUDED.needs_sponsorship,
			willing_to_relocate = EXCLUDED.willing_to_relocate,
			available_start_date = EXCLUDED.available_start_date,
			updated_at = now()`,
		p.UserID, p.Name, p.Email, p.Phone, p.ResumeText, p.ResumeFileKey,
		p.Skills, p.Experience, p.DesiredTitles, p.PortfolioLinks,
		p.Certifications, p.Languages, p.BiggestAchievement,
		p.CareerGoals, p.NeedsSponsorship, p.WillingToRelocate, p.AvailableStartDate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// Snapshot freezes the user's current profile. The returned snapshot is
// stamped with the read time and never written back.
func (s *Store) Snapshot(ctx context.Context, userID uuid.UUID) (types.UserProfileSnapshot, error) {
	var p types.UserProfileSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, name, email, phone, resume_text, resume_file_key, skills,
			experience, desired_titles, portfolio_links, certifications, languages,
			biggest_achievement, career_goals,
			needs_sponsorship, willing_to_relocate, available_start_date
		FROM user_profiles WHERE user_id = $1`, userID,
	).Scan(
		&p.UserID, &p.Name, &p.Email, &p.Phone, &p.ResumeText, &p.ResumeFileKey,
		&p.Skills, &p.Experience, &p.DesiredTitles, &p.PortfolioLinks,
		&p.Certifications, &p.Languages, &p.BiggestAchievement,
		&p.CareerGoals, &p.NeedsSponsorship, &p.WillingToRelocate, &p.AvailableStartDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.UserProfileSnapshot{}, ErrProfileNotFound
		}
		return types.UserProfileSnapshot{}, fmt.Errorf("failed to read profile: %w", err)
	}
	p.TakenAt = time.Now().UTC()
	return p, nil
}
