// Package contracts defines the service interfaces for the gateway.
//
// These interfaces form the boundary between the OSS and enterprise repos.
// The OSS repo ships concrete implementations (mongo-backed Store, goja
// sandbox, in-process cache). The enterprise repo can provide enhanced
// implementations that wrap or replace the defaults.
//
// internal/api/handlers takes its Provisioner through these interfaces;
// the dispatcher and catalog it uses are concrete types. The OSS wiring
// lives in pkg/server/server.go.
package contracts

import (
	"context"
	"net/http"

	"github.com/unigate/gateway/internal/store"
	"github.com/unigate/gateway/pkg/models"
)

// Store is a type alias for the internal Store interface.
// Exposed in pkg/ so the enterprise repo can reference it in its own
// middleware and services without importing internal/ directly.
type Store = store.Store

// ErrNotFound is a type alias for the internal ErrNotFound error.
type ErrNotFound = store.ErrNotFound

// ── Cache ────────────────────────────────────────────────────

// Cache is a bounded, TTL-evicting key/value store. OSS ships an
// in-process implementation (internal/cache). Pro can swap in a
// Redis-backed implementation shared across replicas.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Insert(key K, value V)
	Remove(key K)
	Len() int
}

// ── Auth Provider ────────────────────────────────────────────

// Identity is the resolved caller identity produced by an AuthProvider.
type Identity struct {
	EventAccess models.EventAccess
}

// AuthProvider authenticates an inbound request. Returning (nil, nil)
// means "not my scheme, try the next provider"; (nil, err) rejects the
// request outright; (identity, nil) authenticates it.
// OSS ships an API-key header provider. Pro can add OIDC/mTLS providers.
type AuthProvider interface {
	Name() string
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}

// ── Sandbox ──────────────────────────────────────────────────

// Sandbox evaluates a JavaScript mapping function against an input value
// and returns its result. OSS implementation: internal/sandbox (goja).
type Sandbox interface {
	Run(ctx context.Context, namespace, script, fnName string, args ...interface{}) (interface{}, error)
}

// ── HTTP Caller ──────────────────────────────────────────────

// HTTPCaller issues an authenticated outbound call to a connection's
// upstream platform. OSS implementation: internal/httpcaller.
type HTTPCaller interface {
	Call(ctx context.Context, conn *models.Connection, cmd *models.ConnectionModelDefinition, secret *models.Secret, req models.RequestCrud) (*http.Response, []byte, error)
}

// ── Route Matcher ────────────────────────────────────────────

// RouteMatcher resolves a request path against a platform's registered
// CMD templates, returning the most specific match and its extracted
// path parameters. internal/routematch provides package-level Match and
// Template functions of a different shape and does not implement it.
type RouteMatcher interface {
	Match(platform, method, path string) (cmd *models.ConnectionModelDefinition, pathParams map[string]string, ok bool)
	ReverseTemplate(cmd *models.ConnectionModelDefinition, pathParams map[string]string) (string, error)
}

// ── Dispatcher ───────────────────────────────────────────────

// Dispatcher runs the full unified-or-passthrough request lifecycle:
// dependency resolution, request transform, outbound call, response
// transform. internal/dispatch.Dispatcher exposes DispatchUnified and
// DispatchPassthrough instead and does not implement it.
type Dispatcher interface {
	Dispatch(ctx context.Context, destination models.Destination, req models.RequestCrud) (*models.Envelope, error)
}

// ── Provisioner ──────────────────────────────────────────────

// Provisioner stands up and tears down the Kubernetes workload that
// backs a DatabaseSql/DatabaseNoSql connection. OSS implementation:
// internal/provision (kubectl exec, no client-go dependency).
type Provisioner interface {
	Provision(ctx context.Context, conn *models.Connection, def *models.ConnectionDefinition) error
	Deprovision(ctx context.Context, conn *models.Connection) error
	WaitReady(ctx context.Context, conn *models.Connection) error
}

// ── Tier Enforcer ────────────────────────────────────────────

// TierEnforcer is HTTP middleware that enforces plan limits (connection
// count, throughput) before allowing requests through.
type TierEnforcer interface {
	Middleware(next http.Handler) http.Handler
}

// CommunityTierEnforcer is a no-op middleware for the OSS edition.
// Pro replaces this with quota-checking middleware.
type CommunityTierEnforcer struct{}

func (e *CommunityTierEnforcer) Middleware(next http.Handler) http.Handler {
	return next
}
