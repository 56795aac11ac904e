package match

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"gitea.kood.tech/petrkubec/match-engine/metrics"
)

// BoundingBoxDegrees is the half-width of the lat/lon box around the requester.
// It is a coarse box in degrees, not a distance radius.
const BoundingBoxDegrees = 5.0

// FindPotentialMatches ranks up to limit undecided candidates for userID.
//
// Raw candidates are fetched at limit × OverFetchFactor, filtered (inactive,
// excluded, outside the box), scored concurrently and sorted by score
// descending with candidate id ascending as the tie-break. A candidate whose
// attributes cannot be read scores 0 and is marked Degraded.
func (e *Engine) FindPotentialMatches(ctx context.Context, userID string, limit int) ([]ScoredCandidate, error) {
	start := time.Now()
	defer func() { metrics.RankingDuration.Observe(time.Since(start).Seconds()) }()

	if !validID(userID) {
		return nil, fmt.Errorf("%w: user id %q", ErrInvalidArgument, userID)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, limit)
	}
	if limit > e.opts.MaxLimit {
		limit = e.opts.MaxLimit
	}

	reader := e.requestReader()
	requester, err := e.lookup(ctx, reader, userID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	excluded, err := e.ExclusionSet(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(err)
	}

	q := BoundingBoxQuery{
		Center:   requester.Location,
		DeltaDeg: BoundingBoxDegrees,
		Exclude:  excluded,
		Limit:    limit * e.opts.OverFetchFactor,
	}
	raw, err := e.fetchCandidates(ctx, q)
	if err != nil {
		return nil, err
	}

	candidates := filterCandidates(raw, q)
	scored, err := e.scoreCandidates(ctx, reader, requester, candidates)
	if err != nil {
		return nil, err
	}

	rankCandidates(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (e *Engine) fetchCandidates(ctx context.Context, q BoundingBoxQuery) ([]UserRecord, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.CandidateFetchTimeout)
	defer cancel()

	raw, err := e.candidates.QueryActiveUsersInBoundingBox(fetchCtx, q)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("query candidates: %w", classify(err))
	}
	return raw, nil
}

// filterCandidates re-applies the query filters in memory so a loose store
// implementation cannot leak excluded users. Order: inactive, excluded, box.
func filterCandidates(raw []UserRecord, q BoundingBoxQuery) []UserRecord {
	out := make([]UserRecord, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		if !c.Active {
			continue
		}
		if _, skip := q.Exclude[c.ID]; skip {
			continue
		}
		if !q.Contains(c.Location) {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// scoreCandidates scores every candidate against the requester with one
// worker per candidate. Results land by index, so completion order is irrelevant.
func (e *Engine) scoreCandidates(ctx context.Context, reader AttributeReader, requester *Attributes, candidates []UserRecord) ([]ScoredCandidate, error) {
	out := make([]ScoredCandidate, len(candidates))
	if len(candidates) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(candidates))
	for i, c := range candidates {
		g.Go(func() error {
			out[i] = ScoredCandidate{User: c, Tags: []string{}, DistanceKm: distanceBetween(requester.Location, c.Location)}
			attrs, err := e.lookup(gctx, reader, c.ID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				reason := degradeReason(err)
				e.log.Warn("candidate scoring degraded",
					"user_id", requester.ID,
					"candidate_id", c.ID,
					"reason", reason,
					"error", err)
				metrics.ScoringDegraded.WithLabelValues(reason).Inc()
				out[i].Degraded = true
				return nil
			}
			out[i].Tags = attrs.TagIDs()
			out[i].Score = Score(requester, attrs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scored := 0
	for _, c := range out {
		if !c.Degraded {
			scored++
		}
	}
	metrics.CandidatesScored.Add(float64(scored))
	return out, nil
}

// rankCandidates sorts by score descending, then candidate id ascending.
func rankCandidates(scored []ScoredCandidate) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].User.ID < scored[j].User.ID
	})
}
