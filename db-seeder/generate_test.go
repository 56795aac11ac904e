package main

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.kood.tech/petrkubec/match-engine/auth"
	"gitea.kood.tech/petrkubec/match-engine/match"
)

func testCfg() cfg {
	return cfg{
		DSN:               "postgres://localhost/test",
		Count:             60,
		MatchRate:         0.5,
		InactiveRate:      0.1,
		NoLocationRate:    0.1,
		NoPersonalityRate: 0.1,
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := generate(rand.New(rand.NewSource(7)), testCfg(), "hash", now)
	require.NoError(t, err)
	b, err := generate(rand.New(rand.NewSource(7)), testCfg(), "hash", now)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestGenerateShape(t *testing.T) {
	c := testCfg()
	ds, err := generate(rand.New(rand.NewSource(42)), c, "hash", time.Now())
	require.NoError(t, err)
	require.Len(t, ds.users, c.Count)

	assert.Equal(t, "user1@test.local", ds.users[0].user.Email)
	assert.Equal(t, "user2@test.local", ds.users[1].user.Email)

	known := make(map[string]struct{}, len(taxonomy))
	for _, tag := range taxonomy {
		known[tag.ID] = struct{}{}
	}
	ids := make(map[string]struct{}, len(ds.users))
	for _, u := range ds.users {
		ids[u.user.ID] = struct{}{}
		for _, tag := range u.tags {
			assert.Contains(t, known, tag.TagID)
			assert.True(t, tag.Preference.Valid())
		}
		if p := u.personality; p != nil {
			assert.GreaterOrEqual(t, p.DominanceLevel, 0)
			assert.LessOrEqual(t, p.DominanceLevel, 100)
		}
	}
	assert.Len(t, ids, c.Count, "user ids are unique")

	require.NotEmpty(t, ds.matches)
	pairs := make(map[[2]string]struct{}, len(ds.matches))
	for _, m := range ds.matches {
		var key [2]string
		key[0], key[1] = match.PairKey(m.UserA, m.UserB)
		assert.NotContains(t, pairs, key, "one record per pair")
		pairs[key] = struct{}{}

		assert.NotEqual(t, m.UserA, m.UserB)
		assert.GreaterOrEqual(t, m.CompatibilityScore, 0.0)
		assert.LessOrEqual(t, m.CompatibilityScore, 1.0)
	}

	var testPair [2]string
	testPair[0], testPair[1] = match.PairKey(ds.users[0].user.ID, ds.users[1].user.ID)
	assert.NotContains(t, pairs, testPair, "test users stay discoverable to each other")
}

func TestCfgValidate(t *testing.T) {
	assert.NoError(t, testCfg().validate())

	c := testCfg()
	c.DSN = ""
	assert.Error(t, c.validate())

	c = testCfg()
	c.Count = 1
	assert.Error(t, c.validate())

	c = testCfg()
	c.MatchRate = 1.5
	assert.ErrorContains(t, c.validate(), "match-rate")
}

func TestPrintTestTokens(t *testing.T) {
	ds, err := generate(rand.New(rand.NewSource(1)), testCfg(), "hash", time.Now())
	require.NoError(t, err)
	secret := []byte("seed-secret")

	var buf bytes.Buffer
	require.NoError(t, printTestTokens(&buf, secret, ds.users[:2], time.Hour))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		parts := strings.Split(line, "\t")
		require.Len(t, parts, 3, line)
		assert.Equal(t, ds.users[i].user.Email, parts[0])
		assert.Equal(t, ds.users[i].user.ID, parts[1])

		tok, ok := strings.CutPrefix(parts[2], "Bearer ")
		require.True(t, ok, parts[2])
		id, err := auth.Parse(secret, tok)
		require.NoError(t, err)
		assert.Equal(t, ds.users[i].user.ID, id)
	}

	assert.Error(t, printTestTokens(&bytes.Buffer{}, nil, ds.users[:1], time.Hour))
}
