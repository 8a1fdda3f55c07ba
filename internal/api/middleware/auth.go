package middleware

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/unigate/gateway/internal/auth"
	pkgmw "github.com/unigate/gateway/pkg/middleware"
)

// AuthMiddleware authenticates requests using the pluggable auth provider
// chain and stores the resulting Identity (and the environment it scopes
// to) in the request context.
type AuthMiddleware struct {
	chain       *auth.ProviderChain
	requireAuth bool
}

// NewAuthMiddleware creates the auth middleware.
//
// If requireAuth is true, unauthenticated requests to non-public paths are
// rejected. Config: GATEWAY_REQUIRE_AUTH env var (default: false).
func NewAuthMiddleware(chain *auth.ProviderChain) *AuthMiddleware {
	requireAuth := os.Getenv("GATEWAY_REQUIRE_AUTH") == "true"
	return &AuthMiddleware{chain: chain, requireAuth: requireAuth}
}

// Handler returns the HTTP handler middleware that authenticates requests.
func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAuthPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := am.chain.Authenticate(r.Context(), r)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
			respondUnauthenticated(w, "authentication_failed", err.Error())
			return
		}

		if identity == nil && am.requireAuth {
			respondUnauthenticated(w, "authentication_required",
				"this endpoint requires authentication; set the configured access-key header or X-Service-Token")
			return
		}

		ctx := r.Context()
		if identity != nil {
			ctx = pkgmw.SetIdentity(ctx, identity)
			if identity.EventAccess.Environment != "" {
				ctx = pkgmw.SetEnvironment(ctx, identity.EventAccess.Environment)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func respondUnauthenticated(w http.ResponseWriter, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="gateway"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}

// isAuthPublicPath returns true for paths that should skip authentication.
func isAuthPublicPath(path string) bool {
	switch path {
	case "/health", "/version":
		return true
	}
	return strings.HasPrefix(path, "/v1/public/")
}
