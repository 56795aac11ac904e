package main

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"gitea.kood.tech/petrkubec/match-engine/match"
	"gitea.kood.tech/petrkubec/match-engine/store"
)

type tagDef struct {
	ID       string
	Name     string
	Category string
}

var taxonomy = []tagDef{
	{"hiking", "Hiking", "outdoors"},
	{"bouldering", "Bouldering", "outdoors"},
	{"sailing", "Sailing", "outdoors"},
	{"photography", "Photography", "creative"},
	{"pottery", "Pottery", "creative"},
	{"woodworking", "Woodworking", "creative"},
	{"calligraphy", "Calligraphy", "creative"},
	{"cooking", "Cooking", "food"},
	{"ramen", "Ramen", "food"},
	{"wine", "Wine tasting", "food"},
	{"board-games", "Board games", "social"},
	{"dancing", "Dancing", "social"},
	{"karaoke", "Karaoke", "social"},
	{"yoga", "Yoga", "wellness"},
	{"meditation", "Meditation", "wellness"},
	{"retro-gaming", "Retro gaming", "digital"},
	{"music-production", "Music production", "digital"},
	{"jazz", "Jazz", "music"},
	{"metal", "Metal", "music"},
	{"classical", "Classical", "music"},
}

var archetypes = []string{"Explorer", "Guardian", "Caregiver", "Rebel", "Sage", "Lover"}

var ageRanges = []string{"18-25", "25-30", "30-35", "35-40", "40-45", "45-50", "50+"}

var preferences = []match.TagPreference{match.PreferenceInterested, match.PreferenceExperienced, match.PreferenceCurious}

var cities = []struct {
	City string
	Lat  float64
	Lon  float64
}{
	{"Helsinki", 60.1699, 24.9384},
	{"Espoo", 60.2055, 24.6559},
	{"Tampere", 61.4978, 23.7610},
	{"Turku", 60.4518, 22.2666},
	{"Oulu", 65.0121, 25.4651},
	{"Jyväskylä", 62.2426, 25.7473},
	{"Tallinn", 59.4370, 24.7536},
}

type seedUser struct {
	user        store.NewUser
	tags        []match.UserTag
	personality *match.PersonalityProfile
}

func (u seedUser) attributes() *match.Attributes {
	return &match.Attributes{UserRecord: u.user.UserRecord, Tags: u.tags, Personality: u.personality}
}

type dataset struct {
	users   []seedUser
	matches []match.MatchRecord
}

// generate builds the whole seed deterministically from r. The first two
// users are fixed test accounts living next to each other in Helsinki.
func generate(r *rand.Rand, c cfg, pwHash string, now time.Time) (*dataset, error) {
	ds := &dataset{users: make([]seedUser, 0, c.Count)}
	emails := make(map[string]struct{}, c.Count)

	for i := 0; i < c.Count; i++ {
		id, err := uuid.NewRandomFromReader(r)
		if err != nil {
			return nil, fmt.Errorf("user id %d: %w", i, err)
		}

		u := seedUser{user: store.NewUser{
			UserRecord: match.UserRecord{
				ID:       id.String(),
				AgeRange: ageRanges[r.Intn(len(ageRanges))],
				Active:   true,
			},
			PasswordHash: pwHash,
		}}

		switch i {
		case 0, 1:
			u.user.Email = fmt.Sprintf("user%d@test.local", i+1)
			u.user.Pseudonym = fmt.Sprintf("Test User %d", i+1)
			u.user.Location = &match.GeoPoint{Lat: 60.1699 + float64(i)*0.005, Lon: 24.9384}
			u.tags = []match.UserTag{
				{TagID: "hiking", Preference: match.PreferenceExperienced},
				{TagID: "pottery", Preference: match.PreferenceCurious},
				{TagID: []string{"jazz", "ramen"}[i], Preference: match.PreferenceInterested},
			}
			u.personality = &match.PersonalityProfile{
				Archetype:       "Explorer",
				Traits:          map[string]string{"pace": "slow", "mornings": []string{"yes", "no"}[i]},
				DominanceLevel:  40 + i*20,
				SubmissionLevel: 60 - i*20,
			}
		default:
			u.user.Email = uniqueEmail(r, emails)
			u.user.Pseudonym = pseudonym(r)
			u.user.Active = r.Float64() >= c.InactiveRate
			if r.Float64() >= c.NoLocationRate {
				city := cities[r.Intn(len(cities))]
				u.user.Location = &match.GeoPoint{
					Lat: city.Lat + (r.Float64()-0.5)*0.4,
					Lon: city.Lon + (r.Float64()-0.5)*0.4,
				}
			}
			u.tags = pickTags(r, 1+r.Intn(6))
			if r.Float64() >= c.NoPersonalityRate {
				u.personality = randomPersonality(r)
			}
		}
		ds.users = append(ds.users, u)
	}

	matches, err := pairUp(r, ds.users, c.MatchRate, now)
	if err != nil {
		return nil, err
	}
	ds.matches = matches
	return ds, nil
}

// pairUp creates roughly rate*len(users) match records between distinct
// pairs. The two test users are always matched to someone other than each
// other, so they still see each other as candidates.
func pairUp(r *rand.Rand, users []seedUser, rate float64, now time.Time) ([]match.MatchRecord, error) {
	if rate <= 0 || len(users) < 3 {
		return nil, nil
	}
	target := int(float64(len(users)) * rate)
	seen := make(map[[2]string]struct{}, target)
	out := make([]match.MatchRecord, 0, target)

	testPair := [2]string{}
	testPair[0], testPair[1] = match.PairKey(users[0].user.ID, users[1].user.ID)
	seen[testPair] = struct{}{}

	for attempts := 0; len(out) < target && attempts < target*20; attempts++ {
		a := users[r.Intn(len(users))]
		b := users[r.Intn(len(users))]
		if a.user.ID == b.user.ID {
			continue
		}
		var key [2]string
		key[0], key[1] = match.PairKey(a.user.ID, b.user.ID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		id, err := uuid.NewRandomFromReader(r)
		if err != nil {
			return nil, err
		}
		out = append(out, match.MatchRecord{
			ID:                 id.String(),
			UserA:              a.user.ID,
			UserB:              b.user.ID,
			CompatibilityScore: match.Score(a.attributes(), b.attributes()),
			Status:             match.StatusMatched,
			CreatedAt:          now.Add(-time.Duration(r.Intn(30*24)) * time.Hour).UTC(),
		})
	}
	return out, nil
}

func pickTags(r *rand.Rand, n int) []match.UserTag {
	perm := r.Perm(len(taxonomy))
	if n > len(perm) {
		n = len(perm)
	}
	out := make([]match.UserTag, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, match.UserTag{
			TagID:      taxonomy[idx].ID,
			Preference: preferences[r.Intn(len(preferences))],
		})
	}
	return out
}

func randomPersonality(r *rand.Rand) *match.PersonalityProfile {
	return &match.PersonalityProfile{
		Archetype: archetypes[r.Intn(len(archetypes))],
		Traits: map[string]string{
			"pace":     []string{"slow", "steady", "fast"}[r.Intn(3)],
			"mornings": []string{"yes", "no"}[r.Intn(2)],
		},
		DominanceLevel:  r.Intn(101),
		SubmissionLevel: r.Intn(101),
	}
}

func uniqueEmail(r *rand.Rand, used map[string]struct{}) string {
	for {
		local := strings.ToLower(strings.ReplaceAll(pseudonym(r), " ", "."))
		domain := []string{"example.com", "mail.test", "dev.local"}[r.Intn(3)]
		email := fmt.Sprintf("%s+%d@%s", local, r.Intn(1000000), domain)
		if _, ok := used[email]; !ok {
			used[email] = struct{}{}
			return email
		}
	}
}

func pseudonym(r *rand.Rand) string {
	first := []string{"Alex", "Sam", "Mia", "Lauri", "Noah", "Olivia", "Leo", "Emil", "Sara", "Luca", "Milla", "Mikko", "Eeva", "Niklas", "Sofia"}
	last := []string{"Korhonen", "Virtanen", "Nieminen", "Laine", "Heikkinen", "Koski", "Maki", "Aho", "Salmi", "Rantanen"}
	return first[r.Intn(len(first))] + " " + last[r.Intn(len(last))]
}
