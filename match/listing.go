package match

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ListMatches is GetMatches with the other party's profile on every record.
// All profiles of the page, plus the caller's own for distances, go through
// one batched reader. A profile that cannot be read leaves Partner nil.
func (e *Engine) ListMatches(ctx context.Context, userID string, limit, offset int) ([]MatchSummary, error) {
	records, err := e.GetMatches(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]MatchSummary, len(records))
	if len(records) == 0 {
		return out, nil
	}

	reader := e.requestReader()
	var self *Attributes

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		attrs, err := e.lookup(gctx, reader, userID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Debug("caller profile unavailable for distances", "user_id", userID, "error", err)
			return nil
		}
		self = attrs
		return nil
	})
	for i, rec := range records {
		out[i] = MatchSummary{MatchRecord: rec}
		partnerID, _ := rec.Other(userID)
		g.Go(func() error {
			attrs, err := e.lookup(gctx, reader, partnerID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.log.Warn("match partner lookup failed",
					"match_id", rec.ID,
					"partner_id", partnerID,
					"reason", degradeReason(err),
					"error", err)
				return nil
			}
			partner := attrs.UserRecord
			out[i].Partner = &partner
			out[i].PartnerTags = attrs.TagIDs()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if self != nil {
		for i := range out {
			if out[i].Partner != nil {
				out[i].DistanceKm = distanceBetween(self.Location, out[i].Partner.Location)
			}
		}
	}
	return out, nil
}
