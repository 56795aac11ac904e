package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gitea.kood.tech/petrkubec/match-engine/match"
)

// Write helpers used by the seeder and the store tests. The HTTP surface
// never writes users, tags or profiles.

// NewUser is a user row as the seeder creates it.
type NewUser struct {
	match.UserRecord
	Email        string
	PasswordHash string
}

// UpsertUser inserts or replaces a user row.
func (p *Postgres) UpsertUser(ctx context.Context, u NewUser) error {
	return upsertUser(ctx, p.db, u)
}

// UpsertTag makes sure a taxonomy tag exists.
func (p *Postgres) UpsertTag(ctx context.Context, id, name, category string) error {
	return upsertTag(ctx, p.db, id, name, category)
}

// ReplaceTags swaps the user's tag set in one transaction.
func (p *Postgres) ReplaceTags(ctx context.Context, userID string, tags []match.UserTag) error {
	return withTx(ctx, p.db, func(tx *sql.Tx) error {
		return replaceTags(ctx, tx, userID, tags)
	})
}

// UpsertPersonality writes the profile wholesale.
func (p *Postgres) UpsertPersonality(ctx context.Context, userID string, prof *match.PersonalityProfile) error {
	return upsertPersonality(ctx, p.db, userID, prof)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertUser(ctx context.Context, ex execer, u NewUser) error {
	var lat, lon sql.NullFloat64
	if u.Location != nil {
		lat = sql.NullFloat64{Float64: u.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: u.Location.Lon, Valid: true}
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, pseudonym, age_range, latitude, longitude, is_active)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			pseudonym = EXCLUDED.pseudonym,
			age_range = EXCLUDED.age_range,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			is_active = EXCLUDED.is_active
	`, u.ID, u.Email, u.PasswordHash, u.Pseudonym, u.AgeRange, lat, lon, u.Active)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

func upsertTag(ctx context.Context, ex execer, id, name, category string) error {
	if name == "" {
		name = id
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO tags (id, name, category) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, id, name, category)
	if err != nil {
		return fmt.Errorf("upsert tag %s: %w", id, err)
	}
	return nil
}

func replaceTags(ctx context.Context, ex execer, userID string, tags []match.UserTag) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM user_tags WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear tags for %s: %w", userID, err)
	}
	for _, t := range tags {
		if !t.Preference.Valid() {
			return fmt.Errorf("%w: preference %q", match.ErrInvalidArgument, t.Preference)
		}
		if err := upsertTag(ctx, ex, t.TagID, "", ""); err != nil {
			return err
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO user_tags (user_id, tag_id, preference) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, tag_id) DO UPDATE SET preference = EXCLUDED.preference
		`, userID, t.TagID, string(t.Preference)); err != nil {
			return fmt.Errorf("insert tag %s for %s: %w", t.TagID, userID, err)
		}
	}
	return nil
}

func upsertPersonality(ctx context.Context, ex execer, userID string, prof *match.PersonalityProfile) error {
	if prof == nil {
		_, err := ex.ExecContext(ctx, `DELETE FROM personality_profiles WHERE user_id = $1`, userID)
		return err
	}
	traits := prof.Traits
	if traits == nil {
		traits = map[string]string{}
	}
	raw, err := json.Marshal(traits)
	if err != nil {
		return fmt.Errorf("encode traits: %w", err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO personality_profiles (user_id, archetype, traits, dominance_level, submission_level, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE SET
			archetype = EXCLUDED.archetype,
			traits = EXCLUDED.traits,
			dominance_level = EXCLUDED.dominance_level,
			submission_level = EXCLUDED.submission_level,
			updated_at = now()
	`, userID, prof.Archetype, string(raw), prof.DominanceLevel, prof.SubmissionLevel)
	if err != nil {
		return fmt.Errorf("upsert personality for %s: %w", userID, err)
	}
	return nil
}

// SeedTx runs fn with transaction-bound write helpers, so a whole seed
// run commits or rolls back as one unit.
func (p *Postgres) SeedTx(ctx context.Context, fn func(w *SeedWriter) error) error {
	return withTx(ctx, p.db, func(tx *sql.Tx) error {
		return fn(&SeedWriter{tx: tx})
	})
}

// SeedWriter writes seed data inside one transaction.
type SeedWriter struct {
	tx *sql.Tx
}

func (w *SeedWriter) User(ctx context.Context, u NewUser) error {
	return upsertUser(ctx, w.tx, u)
}

func (w *SeedWriter) Tag(ctx context.Context, id, name, category string) error {
	return upsertTag(ctx, w.tx, id, name, category)
}

func (w *SeedWriter) Tags(ctx context.Context, userID string, tags []match.UserTag) error {
	return replaceTags(ctx, w.tx, userID, tags)
}

func (w *SeedWriter) Personality(ctx context.Context, userID string, prof *match.PersonalityProfile) error {
	return upsertPersonality(ctx, w.tx, userID, prof)
}

// Match inserts a record, skipping pairs that already have one.
func (w *SeedWriter) Match(ctx context.Context, rec match.MatchRecord) (bool, error) {
	res, err := w.tx.ExecContext(ctx, `
		INSERT INTO matches (id, user_a, user_b, compatibility_score, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`, rec.ID, rec.UserA, rec.UserB, rec.CompatibilityScore, rec.Status, rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert match %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Reset empties every table. Seeder and tests only.
func (w *SeedWriter) Reset(ctx context.Context) error {
	_, err := w.tx.ExecContext(ctx, `TRUNCATE matches, personality_profiles, user_tags, tags, users`)
	return err
}
