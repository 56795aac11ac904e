package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gitea.kood.tech/petrkubec/match-engine/auth"
)

// UserIDKey is the key type for storing user ID in context
type UserIDKey string

const userIDKey UserIDKey = "userID"

// authenticate rejects requests without a valid bearer token and stores the
// caller's user id in the request context.
func authenticate(secret []byte, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		userID, err := auth.Parse(secret, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			code := "invalid_token"
			if errors.Is(err, auth.ErrExpiredToken) {
				code = "expired_token"
			}
			writeError(w, http.StatusUnauthorized, code)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

func currentUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// getUserIDFromRequest tries the Authorization header first, then the token
// query param, since browsers can't set headers on WebSocket upgrades.
func getUserIDFromRequest(r *http.Request, secret []byte) (string, bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		id, err := auth.Parse(secret, h[len("Bearer "):])
		return id, err == nil
	}
	if q := r.URL.Query().Get("token"); q != "" {
		id, err := auth.Parse(secret, q)
		return id, err == nil
	}
	return "", false
}
