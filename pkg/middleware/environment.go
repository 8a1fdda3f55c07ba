// Package middleware provides shared middleware helpers for the gateway.
//
// This package lives in pkg/ (not internal/) so that an enterprise build
// can reuse GetEnvironment()/SetEnvironment() in its own middleware stack.
package middleware

import "context"

type contextKey string

const environmentKey contextKey = "environment"

// GetEnvironment extracts the tenant environment ("production", a sandbox
// name, ...) from the context. Returns "default" if none is set.
func GetEnvironment(ctx context.Context) string {
	if v, ok := ctx.Value(environmentKey).(string); ok && v != "" {
		return v
	}
	return "default"
}

// SetEnvironment stores the tenant environment in the context.
func SetEnvironment(ctx context.Context, environment string) context.Context {
	return context.WithValue(ctx, environmentKey, environment)
}
