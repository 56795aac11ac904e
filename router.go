package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"gitea.kood.tech/petrkubec/match-engine/config"
	"gitea.kood.tech/petrkubec/match-engine/events"
	"gitea.kood.tech/petrkubec/match-engine/logger"
	"gitea.kood.tech/petrkubec/match-engine/metrics"
)

type routerDeps struct {
	cfg       *config.Config
	log       *logger.Logger
	svc       matchService
	hub       *events.Hub
	jwtSecret []byte
	// ping reports storage health; nil means always healthy.
	ping func(ctx context.Context) error
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withCORS(d.cfg.CORS.AllowedOrigins))
	r.Use(withMetrics)

	r.Get("/health", healthHandler(d.ping))
	r.Handle("/metrics", metrics.Handler())

	authed := func(h http.HandlerFunc) http.HandlerFunc { return authenticate(d.jwtSecret, h) }

	r.Group(func(r chi.Router) {
		if d.cfg.RateLimit.Enabled {
			r.Use(httprate.LimitByIP(d.cfg.RateLimit.Requests, d.cfg.RateLimit.Window))
		}

		r.Get("/matches/potential", authed(potentialMatchesHandler(d.svc, d.cfg.Matching.DefaultLimit, d.log)))
		r.Get("/matches", authed(listMatchesHandler(d.svc, d.cfg.Matching.DefaultPageSize, d.log)))
		r.Post("/matches", authed(createMatchHandler(d.svc, d.log)))
		r.Get("/matches/{id}", authed(getMatchHandler(d.svc, d.log)))
		r.Post("/matches/{id}/reject", authed(rejectMatchHandler(d.svc, d.log)))
		r.Delete("/matches/{id}", authed(unmatchHandler(d.svc, d.log)))
	})

	// The socket authenticates itself; browsers pass the token as ?token=.
	r.Get("/ws/matches", matchEventsHandler(d.hub, d.jwtSecret, d.cfg.CORS.AllowedOrigins, d.log))

	return r
}

// Health check endpoint for Docker
func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// withMetrics records every request under its route pattern, so ids in paths
// don't blow up label cardinality.
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, endpoint, status, time.Since(start))
	})
}
