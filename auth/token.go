// Package auth issues and verifies the bearer tokens the API accepts.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Issue signs an HS256 token carrying user_id and an expires unix timestamp.
func Issue(secret []byte, userID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty jwt secret")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"expires": time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// Parse verifies tokenStr and returns its user id.
func Parse(secret []byte, tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	// jwt.MapClaims stores numbers as float64
	if exp, ok := claims["expires"].(float64); ok && time.Now().Unix() > int64(exp) {
		return "", ErrExpiredToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", ErrInvalidToken
	}
	if _, err := uuid.Parse(userID); err != nil {
		return "", ErrInvalidToken
	}
	return userID, nil
}
