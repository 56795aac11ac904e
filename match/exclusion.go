package match

import (
	"context"
	"fmt"
)

// BuildExclusionSet returns userID plus every user that shares a match record
// with it, in either column.
func BuildExclusionSet(userID string, records []MatchRecord) map[string]struct{} {
	excluded := make(map[string]struct{}, len(records)+1)
	excluded[userID] = struct{}{}
	for i := range records {
		if other, ok := records[i].Other(userID); ok {
			excluded[other] = struct{}{}
		}
	}
	return excluded
}

// ExclusionSet loads the records involving userID and builds the set from them.
func (e *Engine) ExclusionSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	records, err := e.matches.FindMatchRecordsInvolving(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load match records for %s: %w", userID, err)
	}
	return BuildExclusionSet(userID, records), nil
}
