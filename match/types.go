package match

import (
	"sort"
	"time"
)

// TagPreference is how a user relates to a tag.
type TagPreference string

const (
	PreferenceInterested  TagPreference = "interested"
	PreferenceExperienced TagPreference = "experienced"
	PreferenceCurious     TagPreference = "curious"
)

// Valid reports whether p is one of the known preference labels.
func (p TagPreference) Valid() bool {
	switch p {
	case PreferenceInterested, PreferenceExperienced, PreferenceCurious:
		return true
	}
	return false
}

// StatusMatched is the only persisted match status. Rejection deletes the record.
const StatusMatched = "matched"

// UserTag links a user to a taxonomy tag.
type UserTag struct {
	TagID      string        `json:"tag_id"`
	Preference TagPreference `json:"preference"`
}

// PersonalityProfile is written wholesale; levels are 0..100 inclusive.
type PersonalityProfile struct {
	Archetype       string            `json:"archetype"`
	Traits          map[string]string `json:"traits,omitempty"`
	DominanceLevel  int               `json:"dominance_level"`
	SubmissionLevel int               `json:"submission_level"`
}

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// UserRecord is the user row as the core sees it, without tags or personality.
// Location never leaves the service; other users only see a distance.
type UserRecord struct {
	ID        string    `json:"id"`
	Pseudonym string    `json:"pseudonym,omitempty"`
	AgeRange  string    `json:"age_range,omitempty"`
	Location  *GeoPoint `json:"-"`
	Active    bool      `json:"active"`
}

// Attributes is the full bundle the scorer works on.
type Attributes struct {
	UserRecord
	Tags        []UserTag           `json:"tags"`
	Personality *PersonalityProfile `json:"personality,omitempty"`
}

// TagSet returns the set of tag ids, ignoring preference labels.
func (a *Attributes) TagSet() map[string]struct{} {
	set := make(map[string]struct{}, len(a.Tags))
	for _, t := range a.Tags {
		set[t.TagID] = struct{}{}
	}
	return set
}

// TagIDs returns the tag ids in ascending order.
func (a *Attributes) TagIDs() []string {
	ids := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		ids = append(ids, t.TagID)
	}
	sort.Strings(ids)
	return ids
}

// MatchRecord is a persisted pairing of two users.
type MatchRecord struct {
	ID                 string    `json:"id"`
	UserA              string    `json:"user_a"`
	UserB              string    `json:"user_b"`
	CompatibilityScore float64   `json:"compatibility_score"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

// HasUser reports whether userID is one of the two parties.
func (m *MatchRecord) HasUser(userID string) bool {
	return m.UserA == userID || m.UserB == userID
}

// Other returns the party that is not userID.
func (m *MatchRecord) Other(userID string) (string, bool) {
	switch userID {
	case m.UserA:
		return m.UserB, true
	case m.UserB:
		return m.UserA, true
	}
	return "", false
}

// PairKey returns the two ids in lexicographic order, so (a,b) and (b,a) share a key.
func PairKey(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// MatchSummary is a record as one party sees it, with the other party's
// profile. Partner is nil when the profile could not be read.
type MatchSummary struct {
	MatchRecord
	Partner     *UserRecord `json:"partner,omitempty"`
	PartnerTags []string    `json:"partner_tags,omitempty"`
	DistanceKm  *float64    `json:"distance_km,omitempty"`
}

// ScoredCandidate is one entry of a ranked candidate set.
type ScoredCandidate struct {
	User  UserRecord `json:"user"`
	Tags  []string   `json:"tags"`
	Score float64    `json:"score"`
	// DistanceKm is informational; ranking ignores it.
	DistanceKm *float64 `json:"distance_km,omitempty"`
	// Degraded is set when attribute lookup failed and the score fell back to zero.
	Degraded bool `json:"degraded,omitempty"`
}

// Match event types.
const (
	EventMatchCreated = "match.created"
	EventMatchRemoved = "match.removed"
)

// MatchEvent tells both parties of a pairing that it changed.
type MatchEvent struct {
	Type    string    `json:"type"`
	MatchID string    `json:"match_id"`
	UserA   string    `json:"user_a"`
	UserB   string    `json:"user_b"`
	Score   float64   `json:"score,omitempty"`
	At      time.Time `json:"at"`
}
