package match

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"gitea.kood.tech/petrkubec/match-engine/metrics"
)

// Removal actions, used as the metrics label and in logs.
const (
	actionReject  = "reject"
	actionUnmatch = "unmatch"
)

// CreateMatch pairs requesterID with targetID. The pairing is immediately
// mutual; there is no one-sided pending state.
func (e *Engine) CreateMatch(ctx context.Context, requesterID, targetID string) (*MatchRecord, error) {
	if !validID(requesterID) || !validID(targetID) {
		return nil, fmt.Errorf("%w: malformed user id", ErrInvalidArgument)
	}
	if requesterID == targetID {
		return nil, fmt.Errorf("%w: cannot match a user with themselves", ErrInvalidArgument)
	}

	score, err := e.pairScore(ctx, requesterID, targetID)
	if err != nil {
		return nil, err
	}

	rec := &MatchRecord{
		ID:                 uuid.NewString(),
		UserA:              requesterID,
		UserB:              targetID,
		CompatibilityScore: score,
		Status:             StatusMatched,
		CreatedAt:          e.opts.Now().UTC(),
	}

	created, err := e.matches.InsertMatchRecordIfAbsent(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			metrics.MatchConflicts.Inc()
			return nil, err
		}
		return nil, fmt.Errorf("insert match %s/%s: %w", requesterID, targetID, classify(err))
	}

	metrics.MatchesCreated.Inc()
	e.log.Info("match created", "match_id", created.ID, "user_a", created.UserA, "user_b", created.UserB, "score", created.CompatibilityScore)
	e.publish(ctx, MatchEvent{
		Type:    EventMatchCreated,
		MatchID: created.ID,
		UserA:   created.UserA,
		UserB:   created.UserB,
		Score:   created.CompatibilityScore,
		At:      created.CreatedAt,
	})
	return created, nil
}

// pairScore scores a new pairing. Unknown users fail the call; any other
// lookup failure scores 0 and is logged, since the insert still checks that
// both users exist.
func (e *Engine) pairScore(ctx context.Context, requesterID, targetID string) (float64, error) {
	reader := e.requestReader()
	bundles := make([]*Attributes, 0, 2)
	for _, id := range []string{requesterID, targetID} {
		attrs, err := e.lookup(ctx, reader, id)
		switch {
		case err == nil:
			bundles = append(bundles, attrs)
		case ctx.Err() != nil:
			return 0, ctx.Err()
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidArgument):
			return 0, err
		default:
			reason := degradeReason(err)
			metrics.ScoringDegraded.WithLabelValues(reason).Inc()
			e.log.Warn("match scored without attributes", "user_id", id, "reason", reason, "error", err)
			return 0, nil
		}
	}
	return Score(bundles[0], bundles[1]), nil
}

// GetMatches lists the records involving userID in either position, best
// score first.
func (e *Engine) GetMatches(ctx context.Context, userID string, limit, offset int) ([]MatchRecord, error) {
	if !validID(userID) {
		return nil, fmt.Errorf("%w: user id %q", ErrInvalidArgument, userID)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidArgument, offset)
	}
	if limit > e.opts.MaxPageSize {
		limit = e.opts.MaxPageSize
	}

	records, err := e.matches.ListMatchRecords(ctx, userID, Page{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list matches for %s: %w", userID, classify(err))
	}
	if records == nil {
		records = []MatchRecord{}
	}
	return records, nil
}

// SortMatchRecords applies the listing order: score descending, newest first,
// then id ascending. Stores that cannot sort in their query use it.
func SortMatchRecords(records []MatchRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.CompatibilityScore != b.CompatibilityScore {
			return a.CompatibilityScore > b.CompatibilityScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// GetMatch returns one record if userID is a party to it.
func (e *Engine) GetMatch(ctx context.Context, matchID, userID string) (*MatchRecord, error) {
	return e.authorizedRecord(ctx, matchID, userID)
}

// RejectMatch deletes the record. Both parties lose sight of each other.
func (e *Engine) RejectMatch(ctx context.Context, matchID, userID string) error {
	return e.removeMatch(ctx, matchID, userID, actionReject)
}

// Unmatch is RejectMatch under the name clients use for an established pairing.
func (e *Engine) Unmatch(ctx context.Context, matchID, userID string) error {
	return e.removeMatch(ctx, matchID, userID, actionUnmatch)
}

func (e *Engine) removeMatch(ctx context.Context, matchID, userID, action string) error {
	rec, err := e.authorizedRecord(ctx, matchID, userID)
	if err != nil {
		return err
	}
	if err := e.matches.DeleteMatchRecord(ctx, rec.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete match %s: %w", rec.ID, classify(err))
	}

	metrics.MatchesRemoved.WithLabelValues(action).Inc()
	e.log.Info("match removed", "match_id", rec.ID, "action", action, "by", userID)
	e.publish(ctx, MatchEvent{
		Type:    EventMatchRemoved,
		MatchID: rec.ID,
		UserA:   rec.UserA,
		UserB:   rec.UserB,
		At:      e.opts.Now().UTC(),
	})
	return nil
}

func (e *Engine) authorizedRecord(ctx context.Context, matchID, userID string) (*MatchRecord, error) {
	if !validID(matchID) || !validID(userID) {
		return nil, fmt.Errorf("%w: malformed id", ErrInvalidArgument)
	}
	rec, err := e.matches.GetMatchRecord(ctx, matchID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load match %s: %w", matchID, classify(err))
	}
	if !rec.HasUser(userID) {
		return nil, fmt.Errorf("%w: user %s is not a party to match %s", ErrUnauthorized, userID, matchID)
	}
	return rec, nil
}
