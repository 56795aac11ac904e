package main

import (
	"net/http"

	"github.com/go-chi/cors"
)

// The frontend runs on another origin in development and in Docker, so the
// API needs CORS headers for browsers to call it.
func withCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
