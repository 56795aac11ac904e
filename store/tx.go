package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gitea.kood.tech/petrkubec/match-engine/match"
)

// withTx wraps a function in a database transaction.
// - Ensures COMMIT on success, ROLLBACK on errors or panics.
// - Keeps state changes atomic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		// If the callback panics, make sure to rollback before re-panicking
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// loadPairForUpdate returns the match record between two users (in EITHER
// column order) and takes a row lock (`FOR UPDATE`) so no other request can
// delete it until our transaction finishes.
//   - Returns (nil, nil) if no row exists yet.
//   - When no row exists nothing is locked; the pair index settles that race.
func loadPairForUpdate(ctx context.Context, tx *sql.Tx, a, b string) (*match.MatchRecord, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, user_a, user_b, compatibility_score, status, created_at
		FROM matches
		WHERE (user_a = $1 AND user_b = $2)
		   OR (user_a = $2 AND user_b = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE
	`, a, b)

	rec, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*match.MatchRecord, error) {
	var (
		rec     match.MatchRecord
		created time.Time
	)
	if err := row.Scan(&rec.ID, &rec.UserA, &rec.UserB, &rec.CompatibilityScore, &rec.Status, &created); err != nil {
		return nil, err
	}
	rec.CreatedAt = created.UTC()
	return &rec, nil
}
