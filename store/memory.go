package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gitea.kood.tech/petrkubec/match-engine/match"
)

// Memory is a mutex-guarded store used by tests and by the "memory" driver.
type Memory struct {
	mu          sync.RWMutex
	users       map[string]match.UserRecord
	tags        map[string][]match.UserTag
	personality map[string]*match.PersonalityProfile
	matches     map[string]match.MatchRecord
	// normalized pair -> match id
	pairs map[[2]string]string
}

var _ match.Store = (*Memory)(nil)
var _ match.BatchAttributeSource = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]match.UserRecord),
		tags:        make(map[string][]match.UserTag),
		personality: make(map[string]*match.PersonalityProfile),
		matches:     make(map[string]match.MatchRecord),
		pairs:       make(map[[2]string]string),
	}
}

// PutUser inserts or replaces a user row.
func (m *Memory) PutUser(u match.UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Location != nil {
		loc := *u.Location
		u.Location = &loc
	}
	m.users[u.ID] = u
}

// PutTags replaces the user's tags.
func (m *Memory) PutTags(userID string, tags ...match.UserTag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[userID] = append([]match.UserTag(nil), tags...)
}

// PutPersonality replaces the profile wholesale; nil removes it.
func (m *Memory) PutPersonality(userID string, p *match.PersonalityProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		delete(m.personality, userID)
		return
	}
	cp := *p
	m.personality[userID] = &cp
}

func (m *Memory) GetUserAttributes(ctx context.Context, id string) (*match.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", match.ErrNotFound, id)
	}
	return &u, nil
}

func (m *Memory) GetTagSet(ctx context.Context, id string) ([]match.UserTag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.users[id]; !ok {
		return nil, fmt.Errorf("%w: user %s", match.ErrNotFound, id)
	}
	return append([]match.UserTag(nil), m.tags[id]...), nil
}

func (m *Memory) GetPersonality(ctx context.Context, id string) (*match.PersonalityProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.users[id]; !ok {
		return nil, fmt.Errorf("%w: user %s", match.ErrNotFound, id)
	}
	p, ok := m.personality[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) AttributesByIDs(ctx context.Context, ids []string) (map[string]*match.Attributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*match.Attributes, len(ids))
	for _, id := range ids {
		u, ok := m.users[id]
		if !ok {
			continue
		}
		a := &match.Attributes{UserRecord: u, Tags: append([]match.UserTag(nil), m.tags[id]...)}
		if p, ok := m.personality[id]; ok {
			cp := *p
			a.Personality = &cp
		}
		out[id] = a
	}
	return out, nil
}

// QueryActiveUsersInBoundingBox walks users in id order so results are stable.
func (m *Memory) QueryActiveUsersInBoundingBox(ctx context.Context, q match.BoundingBoxQuery) ([]match.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []match.UserRecord
	for _, id := range ids {
		u := m.users[id]
		if !u.Active {
			continue
		}
		if _, skip := q.Exclude[id]; skip {
			continue
		}
		if !q.Contains(u.Location) {
			continue
		}
		out = append(out, u)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) FindMatchRecordsInvolving(ctx context.Context, userID string) ([]match.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.involving(userID), nil
}

func (m *Memory) ListMatchRecords(ctx context.Context, userID string, page match.Page) ([]match.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	recs := m.involving(userID)
	m.mu.RUnlock()

	match.SortMatchRecords(recs)
	if page.Offset >= len(recs) {
		return []match.MatchRecord{}, nil
	}
	recs = recs[page.Offset:]
	if page.Limit > 0 && len(recs) > page.Limit {
		recs = recs[:page.Limit]
	}
	return recs, nil
}

// involving must be called with mu held.
func (m *Memory) involving(userID string) []match.MatchRecord {
	out := make([]match.MatchRecord, 0)
	for _, rec := range m.matches {
		if rec.HasUser(userID) {
			out = append(out, rec)
		}
	}
	return out
}

func (m *Memory) GetMatchRecord(ctx context.Context, id string) (*match.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.matches[id]
	if !ok {
		return nil, fmt.Errorf("%w: match %s", match.ErrNotFound, id)
	}
	return &rec, nil
}

// InsertMatchRecordIfAbsent checks and inserts under one write lock.
func (m *Memory) InsertMatchRecordIfAbsent(ctx context.Context, rec *match.MatchRecord) (*match.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo, hi := match.PairKey(rec.UserA, rec.UserB)
	key := [2]string{lo, hi}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range key {
		if _, ok := m.users[id]; !ok {
			return nil, fmt.Errorf("%w: user %s", match.ErrNotFound, id)
		}
	}
	if existing, ok := m.pairs[key]; ok {
		return nil, fmt.Errorf("%w: pair %s/%s (match %s)", match.ErrAlreadyExists, rec.UserA, rec.UserB, existing)
	}
	if _, ok := m.matches[rec.ID]; ok {
		return nil, fmt.Errorf("%w: match id %s", match.ErrAlreadyExists, rec.ID)
	}
	stored := *rec
	m.matches[stored.ID] = stored
	m.pairs[key] = stored.ID
	return &stored, nil
}

func (m *Memory) DeleteMatchRecord(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.matches[id]
	if !ok {
		return fmt.Errorf("%w: match %s", match.ErrNotFound, id)
	}
	lo, hi := match.PairKey(rec.UserA, rec.UserB)
	delete(m.pairs, [2]string{lo, hi})
	delete(m.matches, id)
	return nil
}

// MatchCount reports how many records are stored.
func (m *Memory) MatchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matches)
}
