package match_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"gitea.kood.tech/petrkubec/match-engine/match"
	"gitea.kood.tech/petrkubec/match-engine/store"
)

// ============================================================================
// TEST HELPER FUNCTIONS
// ============================================================================

type testUser struct {
	loc       *match.GeoPoint
	archetype string
	tags      []string
	inactive  bool
}

func seedUser(t *testing.T, m *store.Memory, u testUser) string {
	t.Helper()
	id := uuid.NewString()
	m.PutUser(match.UserRecord{
		ID:        id,
		Pseudonym: "user-" + id[:8],
		Location:  u.loc,
		Active:    !u.inactive,
	})
	tags := make([]match.UserTag, 0, len(u.tags))
	for _, tag := range u.tags {
		tags = append(tags, match.UserTag{TagID: tag, Preference: match.PreferenceInterested})
	}
	m.PutTags(id, tags...)
	if u.archetype != "" {
		m.PutPersonality(id, &match.PersonalityProfile{Archetype: u.archetype, DominanceLevel: 50, SubmissionLevel: 50})
	}
	return id
}

func newTestEngine(t *testing.T, m *store.Memory, opts match.Options) *match.Engine {
	t.Helper()
	return match.NewEngine(m, m, m, opts, nil)
}

func insertPair(t *testing.T, m *store.Memory, a, b string) *match.MatchRecord {
	t.Helper()
	rec, err := m.InsertMatchRecordIfAbsent(context.Background(), &match.MatchRecord{
		ID:                 uuid.NewString(),
		UserA:              a,
		UserB:              b,
		CompatibilityScore: 0.5,
		Status:             match.StatusMatched,
		CreatedAt:          time.Now().UTC(),
	})
	require.NoError(t, err)
	return rec
}

func candidateIDs(scored []match.ScoredCandidate) []string {
	ids := make([]string, 0, len(scored))
	for _, s := range scored {
		ids = append(ids, s.User.ID)
	}
	return ids
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []match.MatchEvent
}

func (p *recordingPublisher) PublishMatchEvent(_ context.Context, evt match.MatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Events() []match.MatchEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]match.MatchEvent(nil), p.events...)
}

// droppingSource hides some users from batch lookups, or fails batches
// that contain anyone other than the allowed ids.
type droppingSource struct {
	*store.Memory
	drop    map[string]bool
	failFor func(ids []string) error
}

func (d *droppingSource) AttributesByIDs(ctx context.Context, ids []string) (map[string]*match.Attributes, error) {
	if d.failFor != nil {
		if err := d.failFor(ids); err != nil {
			return nil, err
		}
	}
	out, err := d.Memory.AttributesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id := range d.drop {
		delete(out, id)
	}
	return out, nil
}

// slowSource is a plain AttributeSource that blocks on selected ids until
// the lookup context ends.
type slowSource struct {
	mem  *store.Memory
	slow map[string]bool
}

func (s *slowSource) GetUserAttributes(ctx context.Context, id string) (*match.UserRecord, error) {
	if s.slow[id] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.mem.GetUserAttributes(ctx, id)
}

func (s *slowSource) GetTagSet(ctx context.Context, id string) ([]match.UserTag, error) {
	return s.mem.GetTagSet(ctx, id)
}

func (s *slowSource) GetPersonality(ctx context.Context, id string) (*match.PersonalityProfile, error) {
	return s.mem.GetPersonality(ctx, id)
}
