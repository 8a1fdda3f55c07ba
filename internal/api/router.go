// Package api wires the gateway's HTTP routes onto chi, in the same
// middleware-stack style the rest of the gateway's request handling
// favors: request id / real ip / recovery / compression, then the
// gateway's own logging, environment, telemetry, auth, and (optionally)
// tier-enforcement middleware, then the route tree itself.
package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unigate/gateway/internal/api/handlers"
	"github.com/unigate/gateway/internal/api/middleware"
	"github.com/unigate/gateway/internal/auth"
	"github.com/unigate/gateway/pkg/contracts"
)

// NewRouter builds the gateway's HTTP handler tree.
func NewRouter(h *handlers.Handlers, authChain *auth.ProviderChain, tierEnforcer contracts.TierEnforcer) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.EnvironmentExtractor)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   parseCORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if authChain != nil {
		r.Use(middleware.NewAuthMiddleware(authChain).Handler)
	}
	if tierEnforcer != nil {
		r.Use(tierEnforcer.Middleware)
	}

	r.Get("/health", h.Health)
	r.Get("/version", h.Version)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/connection-definitions", func(r chi.Router) {
			r.Get("/", h.ListConnectionDefinitions)
			r.Get("/{platform}", h.GetConnectionDefinition)
		})

		r.Route("/connections", func(r chi.Router) {
			r.Get("/", h.ListConnections)
			r.Post("/", h.CreateConnection)
			r.Get("/{id}", h.GetConnection)
			r.Delete("/{id}", h.DeleteConnection)
			r.Post("/{id}/test", h.TestConnection)
		})

		r.Handle("/passthrough/*", http.HandlerFunc(h.Passthrough))

		r.Route("/{commonModel}", func(r chi.Router) {
			r.Get("/", h.Unified)
			r.Post("/", h.Unified)
			r.Get("/{id}", h.Unified)
			r.Put("/{id}", h.Unified)
			r.Patch("/{id}", h.Unified)
			r.Delete("/{id}", h.Unified)
		})
	})

	return r
}

// parseCORSOrigins reads GATEWAY_CORS_ORIGINS (comma-separated), falling
// back to "*" for local development.
func parseCORSOrigins() []string {
	raw := os.Getenv("GATEWAY_CORS_ORIGINS")
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
