package match

import (
	"context"
)

// AttributeSource is the storage capability behind the Attribute Reader.
// GetUserAttributes returns ErrNotFound for unknown ids; GetPersonality
// returns (nil, nil) when the user has no profile.
type AttributeSource interface {
	GetUserAttributes(ctx context.Context, id string) (*UserRecord, error)
	GetTagSet(ctx context.Context, id string) ([]UserTag, error)
	GetPersonality(ctx context.Context, id string) (*PersonalityProfile, error)
}

// BatchAttributeSource loads many bundles at once. Ids that do not resolve
// are absent from the returned map.
type BatchAttributeSource interface {
	AttributeSource
	AttributesByIDs(ctx context.Context, ids []string) (map[string]*Attributes, error)
}

// BoundingBoxQuery selects active users, optionally inside a lat/lon box.
type BoundingBoxQuery struct {
	// Center is nil when the requester has no coordinates; no geo filter applies then.
	Center   *GeoPoint
	DeltaDeg float64
	Exclude  map[string]struct{}
	Limit    int
}

// Contains reports whether p lies inside the box (edges inclusive).
func (q BoundingBoxQuery) Contains(p *GeoPoint) bool {
	if q.Center == nil {
		return true
	}
	if p == nil {
		return false
	}
	return p.Lat >= q.Center.Lat-q.DeltaDeg && p.Lat <= q.Center.Lat+q.DeltaDeg &&
		p.Lon >= q.Center.Lon-q.DeltaDeg && p.Lon <= q.Center.Lon+q.DeltaDeg
}

// CandidateSource produces raw candidates for ranking.
type CandidateSource interface {
	QueryActiveUsersInBoundingBox(ctx context.Context, q BoundingBoxQuery) ([]UserRecord, error)
}

// Page is a limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

// MatchStore reads and writes match records.
//
// InsertMatchRecordIfAbsent must check for an existing record in both column
// orders and insert as one atomic unit, returning ErrAlreadyExists when the
// pair is taken. DeleteMatchRecord and GetMatchRecord return ErrNotFound for
// unknown ids.
type MatchStore interface {
	FindMatchRecordsInvolving(ctx context.Context, userID string) ([]MatchRecord, error)
	ListMatchRecords(ctx context.Context, userID string, page Page) ([]MatchRecord, error)
	GetMatchRecord(ctx context.Context, id string) (*MatchRecord, error)
	InsertMatchRecordIfAbsent(ctx context.Context, rec *MatchRecord) (*MatchRecord, error)
	DeleteMatchRecord(ctx context.Context, id string) error
}

// Store is everything the engine consumes from storage.
type Store interface {
	AttributeSource
	CandidateSource
	MatchStore
}

// EventPublisher receives lifecycle events. Publishing is best effort.
type EventPublisher interface {
	PublishMatchEvent(ctx context.Context, evt MatchEvent) error
}
