package middleware

import (
	"context"
	"net/http"
	"strings"

	pkgmw "github.com/unigate/gateway/pkg/middleware"
)

type contextKey string

// TenantIDKey is the context key for the resolved tenant environment.
const TenantIDKey contextKey = "tenant_id"

// EnvironmentExtractor sets a request-scoped default environment from the
// X-Environment header or an `environment` query parameter, falling back
// to "default". AuthMiddleware, which runs after this in the chain,
// overrides it with the authenticated EventAccess's environment when one
// is present — so an authenticated caller can never widen its own scope
// by spoofing the header.
func EnvironmentExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		environment := strings.TrimSpace(r.Header.Get("X-Environment"))
		if environment == "" {
			environment = strings.TrimSpace(r.URL.Query().Get("environment"))
		}
		if environment == "" {
			environment = "default"
		}

		ctx := pkgmw.SetEnvironment(r.Context(), environment)
		ctx = context.WithValue(ctx, TenantIDKey, environment)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetEnvironment retrieves the resolved environment from the request context.
func GetEnvironment(ctx context.Context) string {
	return pkgmw.GetEnvironment(ctx)
}

// GetTenantID retrieves the tenant environment from the request context.
func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(TenantIDKey).(string); ok {
		return v
	}
	return "default"
}
