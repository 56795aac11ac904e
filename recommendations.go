package main

import (
	"context"
	"net/http"

	"gitea.kood.tech/petrkubec/match-engine/logger"
	"gitea.kood.tech/petrkubec/match-engine/match"
)

// matchService is the slice of *match.Engine the handlers use.
type matchService interface {
	FindPotentialMatches(ctx context.Context, userID string, limit int) ([]match.ScoredCandidate, error)
	CreateMatch(ctx context.Context, requesterID, targetID string) (*match.MatchRecord, error)
	ListMatches(ctx context.Context, userID string, limit, offset int) ([]match.MatchSummary, error)
	GetMatch(ctx context.Context, matchID, userID string) (*match.MatchRecord, error)
	RejectMatch(ctx context.Context, matchID, userID string) error
	Unmatch(ctx context.Context, matchID, userID string) error
}

// GET /matches/potential?limit=N
func potentialMatchesHandler(svc matchService, defaultLimit int, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", defaultLimit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}

		candidates, err := svc.FindPotentialMatches(r.Context(), currentUserID(r), limit)
		if err != nil {
			writeEngineError(w, r, log, err)
			return
		}

		degraded := 0
		for _, c := range candidates {
			if c.Degraded {
				degraded++
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"candidates": candidates,
			"degraded":   degraded,
		})
	}
}
