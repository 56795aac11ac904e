package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.kood.tech/petrkubec/match-engine/match"
)

// backend is what the contract suite needs from a store under test.
type backend interface {
	match.Store
	match.BatchAttributeSource
}

type seedFunc func(t *testing.T, a match.Attributes)

// runStoreContract checks the behaviour every backend must share.
func runStoreContract(t *testing.T, s backend, seed seedFunc) {
	ctx := context.Background()

	newUser := func(t *testing.T, loc *match.GeoPoint, active bool, archetype string, tags ...string) string {
		t.Helper()
		a := match.Attributes{UserRecord: match.UserRecord{
			ID:        uuid.NewString(),
			Pseudonym: "p",
			AgeRange:  "25-34",
			Location:  loc,
			Active:    active,
		}}
		for _, tag := range tags {
			a.Tags = append(a.Tags, match.UserTag{TagID: tag, Preference: match.PreferenceCurious})
		}
		if archetype != "" {
			a.Personality = &match.PersonalityProfile{
				Archetype:       archetype,
				Traits:          map[string]string{"tone": "calm"},
				DominanceLevel:  70,
				SubmissionLevel: 30,
			}
		}
		seed(t, a)
		return a.ID
	}

	newRecord := func(a, b string, score float64) *match.MatchRecord {
		return &match.MatchRecord{
			ID:                 uuid.NewString(),
			UserA:              a,
			UserB:              b,
			CompatibilityScore: score,
			Status:             match.StatusMatched,
			CreatedAt:          time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("AttributeLookups", func(t *testing.T) {
		id := newUser(t, &match.GeoPoint{Lat: 59.5, Lon: 24.75}, true, "dominant", "rope", "wax")
		bare := newUser(t, nil, true, "")

		rec, err := s.GetUserAttributes(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.ID)
		require.NotNil(t, rec.Location)
		assert.Equal(t, 59.5, rec.Location.Lat)
		assert.True(t, rec.Active)

		tags, err := s.GetTagSet(ctx, id)
		require.NoError(t, err)
		assert.Len(t, tags, 2)

		p, err := s.GetPersonality(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "dominant", p.Archetype)
		assert.Equal(t, "calm", p.Traits["tone"])
		assert.Equal(t, 70, p.DominanceLevel)

		tags, err = s.GetTagSet(ctx, bare)
		require.NoError(t, err)
		assert.Empty(t, tags)

		p, err = s.GetPersonality(ctx, bare)
		require.NoError(t, err)
		assert.Nil(t, p)

		missing := uuid.NewString()
		_, err = s.GetUserAttributes(ctx, missing)
		assert.ErrorIs(t, err, match.ErrNotFound)
		_, err = s.GetTagSet(ctx, missing)
		assert.ErrorIs(t, err, match.ErrNotFound)
		_, err = s.GetPersonality(ctx, missing)
		assert.ErrorIs(t, err, match.ErrNotFound)
	})

	t.Run("AttributesByIDs", func(t *testing.T) {
		a := newUser(t, nil, true, "switch", "rope")
		b := newUser(t, nil, true, "")
		missing := uuid.NewString()

		got, err := s.AttributesByIDs(ctx, []string{a, b, missing})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "switch", got[a].Personality.Archetype)
		assert.Len(t, got[a].Tags, 1)
		assert.Nil(t, got[b].Personality)
		assert.NotContains(t, got, missing)
	})

	t.Run("BoundingBoxQuery", func(t *testing.T) {
		center := &match.GeoPoint{Lat: -33.5, Lon: 151.25}
		me := newUser(t, center, true, "")
		inside := newUser(t, &match.GeoPoint{Lat: -37.5, Lon: 155.25}, true, "")
		excluded := newUser(t, center, true, "")
		newUser(t, center, false, "")
		newUser(t, &match.GeoPoint{Lat: -39, Lon: 151.25}, true, "")
		newUser(t, nil, true, "")

		got, err := s.QueryActiveUsersInBoundingBox(ctx, match.BoundingBoxQuery{
			Center:   center,
			DeltaDeg: match.BoundingBoxDegrees,
			Exclude:  map[string]struct{}{me: {}, excluded: {}},
			Limit:    50,
		})
		require.NoError(t, err)

		ids := make([]string, 0, len(got))
		for _, u := range got {
			ids = append(ids, u.ID)
		}
		assert.Equal(t, []string{inside}, ids)
	})

	t.Run("InsertIfAbsentBothOrders", func(t *testing.T) {
		a := newUser(t, nil, true, "")
		b := newUser(t, nil, true, "")

		created, err := s.InsertMatchRecordIfAbsent(ctx, newRecord(a, b, 0.4))
		require.NoError(t, err)
		assert.Equal(t, a, created.UserA)

		_, err = s.InsertMatchRecordIfAbsent(ctx, newRecord(a, b, 0.4))
		assert.ErrorIs(t, err, match.ErrAlreadyExists)
		_, err = s.InsertMatchRecordIfAbsent(ctx, newRecord(b, a, 0.4))
		assert.ErrorIs(t, err, match.ErrAlreadyExists)

		recs, err := s.FindMatchRecordsInvolving(ctx, b)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})

	t.Run("InsertUnknownUser", func(t *testing.T) {
		a := newUser(t, nil, true, "")

		_, err := s.InsertMatchRecordIfAbsent(ctx, newRecord(a, uuid.NewString(), 0.4))
		assert.ErrorIs(t, err, match.ErrNotFound)
	})

	t.Run("ConcurrentInsertReversedPair", func(t *testing.T) {
		a := newUser(t, nil, true, "")
		b := newUser(t, nil, true, "")

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			okCount int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				from, to := a, b
				if i%2 == 0 {
					from, to = b, a
				}
				_, err := s.InsertMatchRecordIfAbsent(ctx, newRecord(from, to, 0.1))
				if err != nil && !errors.Is(err, match.ErrAlreadyExists) {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if err == nil {
					mu.Lock()
					okCount++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, okCount)
		recs, err := s.FindMatchRecordsInvolving(ctx, a)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})

	t.Run("ListGetDelete", func(t *testing.T) {
		me := newUser(t, nil, true, "")
		x := newUser(t, nil, true, "")
		y := newUser(t, nil, true, "")
		z := newUser(t, nil, true, "")

		low, err := s.InsertMatchRecordIfAbsent(ctx, newRecord(me, x, 0.1))
		require.NoError(t, err)
		high, err := s.InsertMatchRecordIfAbsent(ctx, newRecord(y, me, 0.9))
		require.NoError(t, err)
		mid, err := s.InsertMatchRecordIfAbsent(ctx, newRecord(me, z, 0.5))
		require.NoError(t, err)

		page, err := s.ListMatchRecords(ctx, me, match.Page{Limit: 10})
		require.NoError(t, err)
		require.Len(t, page, 3)
		assert.Equal(t, []string{high.ID, mid.ID, low.ID}, []string{page[0].ID, page[1].ID, page[2].ID})

		page, err = s.ListMatchRecords(ctx, me, match.Page{Limit: 1, Offset: 2})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, low.ID, page[0].ID)

		got, err := s.GetMatchRecord(ctx, mid.ID)
		require.NoError(t, err)
		assert.Equal(t, z, got.UserB)

		require.NoError(t, s.DeleteMatchRecord(ctx, mid.ID))
		_, err = s.GetMatchRecord(ctx, mid.ID)
		assert.ErrorIs(t, err, match.ErrNotFound)
		assert.ErrorIs(t, s.DeleteMatchRecord(ctx, mid.ID), match.ErrNotFound)

		// the pair is free again
		_, err = s.InsertMatchRecordIfAbsent(ctx, newRecord(z, me, 0.5))
		assert.NoError(t, err)
	})
}
