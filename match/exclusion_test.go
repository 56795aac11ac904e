package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExclusionSet(t *testing.T) {
	records := []MatchRecord{
		{ID: "m1", UserA: "me", UserB: "first"},
		{ID: "m2", UserA: "second", UserB: "me"},
		{ID: "m3", UserA: "x", UserB: "y"},
	}

	set := BuildExclusionSet("me", records)

	assert.Len(t, set, 3)
	assert.Contains(t, set, "me")
	assert.Contains(t, set, "first", "requester stored as user_a")
	assert.Contains(t, set, "second", "requester stored as user_b")
	assert.NotContains(t, set, "x")
	assert.NotContains(t, set, "y")
}

func TestBuildExclusionSetAlwaysHasSelf(t *testing.T) {
	set := BuildExclusionSet("me", nil)
	assert.Equal(t, map[string]struct{}{"me": {}}, set)
}

func TestFilterCandidates(t *testing.T) {
	center := &GeoPoint{Lat: 10, Lon: 10}
	q := BoundingBoxQuery{
		Center:   center,
		DeltaDeg: BoundingBoxDegrees,
		Exclude:  map[string]struct{}{"me": {}, "matched": {}},
		Limit:    3,
	}
	raw := []UserRecord{
		{ID: "me", Active: true, Location: center},
		{ID: "inactive", Active: false, Location: center},
		{ID: "matched", Active: true, Location: center},
		{ID: "far", Active: true, Location: &GeoPoint{Lat: 30, Lon: 10}},
		{ID: "nowhere", Active: true},
		{ID: "c1", Active: true, Location: center},
		{ID: "c1", Active: true, Location: center},
		{ID: "c2", Active: true, Location: &GeoPoint{Lat: 15, Lon: 5}},
		{ID: "c3", Active: true, Location: center},
		{ID: "c4", Active: true, Location: center},
	}

	got := filterCandidates(raw, q)

	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids)
}

func TestRankCandidates(t *testing.T) {
	scored := []ScoredCandidate{
		{User: UserRecord{ID: "d"}, Score: 0.1},
		{User: UserRecord{ID: "b"}, Score: 0.5},
		{User: UserRecord{ID: "a"}, Score: 0.5},
		{User: UserRecord{ID: "c"}, Score: 0.9},
	}

	rankCandidates(scored)

	var ids []string
	for _, s := range scored {
		ids = append(ids, s.User.ID)
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids)
}
