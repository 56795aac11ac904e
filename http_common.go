package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gitea.kood.tech/petrkubec/match-engine/logger"
	"gitea.kood.tech/petrkubec/match-engine/match"
	"gitea.kood.tech/petrkubec/match-engine/validation"
)

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps engine errors onto HTTP statuses and stable error codes.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, match.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, match.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, match.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, match.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, match.ErrDependencyFailure):
		return http.StatusServiceUnavailable, "dependency_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeEngineError logs server-side failures and writes the mapped status.
func writeEngineError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "error", err)
	}
	writeError(w, status, code)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "invalid_argument",
			"fields": verr.Fields,
		})
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_argument")
}

// queryInt reads an integer query parameter, falling back to def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
