package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.kood.tech/petrkubec/match-engine/match"
)

func TestWithTx(t *testing.T) {
	p := openTestDB(t)
	ctx := context.Background()

	t.Run("Successful transaction", func(t *testing.T) {
		err := withTx(ctx, p.DB(), func(tx *sql.Tx) error {
			_, err := tx.Exec("SELECT 1")
			return err
		})
		assert.NoError(t, err)
	})

	t.Run("Error rolls back", func(t *testing.T) {
		id := uuid.NewString()
		testError := errors.New("test error")
		err := withTx(ctx, p.DB(), func(tx *sql.Tx) error {
			if err := upsertUser(ctx, tx, NewUser{UserRecord: match.UserRecord{ID: id, Active: true}}); err != nil {
				return err
			}
			return testError
		})
		assert.ErrorIs(t, err, testError)

		_, err = p.GetUserAttributes(ctx, id)
		assert.ErrorIs(t, err, match.ErrNotFound, "user insert must be rolled back")
	})

	t.Run("SQL error", func(t *testing.T) {
		err := withTx(ctx, p.DB(), func(tx *sql.Tx) error {
			_, err := tx.Exec("INVALID SQL STATEMENT")
			return err
		})
		assert.Error(t, err)
	})

	t.Run("Panic is re-raised", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = withTx(ctx, p.DB(), func(tx *sql.Tx) error {
				panic("test panic")
			})
		})
	})
}

func TestWithTxDatabaseUnavailable(t *testing.T) {
	db, err := sql.Open("postgres", "host=127.0.0.1 port=1 sslmode=disable connect_timeout=1")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = withTx(context.Background(), db, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}

func TestLoadPairForUpdate(t *testing.T) {
	p := openTestDB(t)
	ctx := context.Background()

	a, b, c := uuid.NewString(), uuid.NewString(), uuid.NewString()
	for _, id := range []string{a, b, c} {
		require.NoError(t, p.UpsertUser(ctx, NewUser{UserRecord: match.UserRecord{ID: id, Active: true}}))
	}
	rec := &match.MatchRecord{
		ID:                 uuid.NewString(),
		UserA:              a,
		UserB:              b,
		CompatibilityScore: 0.4,
		Status:             match.StatusMatched,
		CreatedAt:          time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := p.InsertMatchRecordIfAbsent(ctx, rec)
	require.NoError(t, err)

	err = withTx(ctx, p.DB(), func(tx *sql.Tx) error {
		got, err := loadPairForUpdate(ctx, tx, b, a)
		require.NoError(t, err)
		require.NotNil(t, got, "pair is found in reversed order")
		assert.Equal(t, rec.ID, got.ID)

		none, err := loadPairForUpdate(ctx, tx, a, c)
		require.NoError(t, err)
		assert.Nil(t, none)
		return nil
	})
	require.NoError(t, err)
}
