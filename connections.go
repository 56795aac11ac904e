package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gitea.kood.tech/petrkubec/match-engine/logger"
	"gitea.kood.tech/petrkubec/match-engine/validation"
)

type createMatchRequest struct {
	TargetUserID string `json:"targetUserId" validate:"required,uuid"`
}

// GET /matches?limit=&offset=
func listMatchesHandler(svc matchService, defaultPageSize int, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", defaultPageSize)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offset")
			return
		}

		records, err := svc.ListMatches(r.Context(), currentUserID(r), limit, offset)
		if err != nil {
			writeEngineError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"matches": records,
			"limit":   limit,
			"offset":  offset,
		})
	}
}

// POST /matches {"targetUserId": "..."}
func createMatchHandler(svc matchService, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMatchRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := validation.Struct(&req); err != nil {
			writeValidationError(w, err)
			return
		}

		rec, err := svc.CreateMatch(r.Context(), currentUserID(r), req.TargetUserID)
		if err != nil {
			writeEngineError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

// GET /matches/{id}
func getMatchHandler(svc matchService, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.GetMatch(r.Context(), chi.URLParam(r, "id"), currentUserID(r))
		if err != nil {
			writeEngineError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// POST /matches/{id}/reject
func rejectMatchHandler(svc matchService, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := chi.URLParam(r, "id")
		if err := svc.RejectMatch(r.Context(), matchID, currentUserID(r)); err != nil {
			writeEngineError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "rejected", "id": matchID})
	}
}

// DELETE /matches/{id}
func unmatchHandler(svc matchService, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := chi.URLParam(r, "id")
		if err := svc.Unmatch(r.Context(), matchID, currentUserID(r)); err != nil {
			writeEngineError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "unmatched", "id": matchID})
	}
}
