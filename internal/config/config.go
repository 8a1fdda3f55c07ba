// Package config loads gateway configuration from environment variables.
// No config library is used here: the teacher's own env-var pattern
// (envStr/envInt/envBool helpers, no file/flag layer) is kept as-is —
// see SPEC_FULL.md's ambient stack notes on why stdlib fits this concern.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the gateway.
type Config struct {
	Port        int
	Version     string
	Environment string // "production" or "development"

	Database  DatabaseConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
	Cache     CacheConfig
	HTTP      HTTPConfig
	Provision ProvisionConfig

	RateLimitEnabled bool
}

// DatabaseConfig configures the document store (MongoDB in production).
type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MigrationsPath string
}

// TelemetryConfig configures the OTLP exporter.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// AuthConfig configures inbound request authentication.
type AuthConfig struct {
	// Header inbound requests present their access key on.
	APIKeyHeader string
	// Shared secret for the internal service-to-service token scheme.
	ServiceSecret string
}

// CacheConfig sets the TTL of each named cache and the shared capacity
// every named cache in the bundle is built with.
type CacheConfig struct {
	Size                              int
	ConnectionTTL                     time.Duration
	ConnectionDefinitionTTL           time.Duration
	ConnectionModelSchemaTTL          time.Duration
	ConnectionModelDefinitionTTL      time.Duration
	SecretTTL                         time.Duration
}

// HTTPConfig configures the outbound HTTP caller.
type HTTPConfig struct {
	ClientTimeout time.Duration
}

// ProvisionConfig configures database connection provisioning probes.
type ProvisionConfig struct {
	ProbeTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:        envInt("GATEWAY_PORT", 8080),
		Version:     envStr("GATEWAY_VERSION", "0.1.0"),
		Environment: envStr("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			URL:            envStr("DATABASE_URL", "mongodb://localhost:27017/gateway"),
			MaxConnections: envInt("DATABASE_MAX_CONNECTIONS", 25),
			MigrationsPath: envStr("DATABASE_MIGRATIONS_PATH", "internal/store/migrations"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", true),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "unigate-gateway"),
		},
		Auth: AuthConfig{
			APIKeyHeader:  envStr("AUTH_API_KEY_HEADER", "x-pica-secret"),
			ServiceSecret: envStr("GATEWAY_SERVICE_SECRET", ""),
		},
		Cache: CacheConfig{
			Size:                         envInt("CACHE_SIZE", 100),
			ConnectionTTL:                envDuration("CONNECTION_CACHE_TTL_SECS", 120*time.Second),
			ConnectionDefinitionTTL:      envDuration("CONNECTION_DEFINITION_CACHE_TTL_SECS", 86400*time.Second),
			ConnectionModelSchemaTTL:     envDuration("CONNECTION_MODEL_SCHEMA_TTL_SECS", 86400*time.Second),
			ConnectionModelDefinitionTTL: envDuration("CONNECTION_MODEL_DEFINITION_CACHE_TTL_SECS", 86400*time.Second),
			SecretTTL:                    envDuration("SECRET_CACHE_TTL_SECS", 300*time.Second),
		},
		HTTP: HTTPConfig{
			ClientTimeout: envDuration("HTTP_CLIENT_TIMEOUT_SECS", 30*time.Second),
		},
		Provision: ProvisionConfig{
			ProbeTimeout: envDuration("DATABASE_CONNECTION_PROBE_TIMEOUT_SECS", 10*time.Second),
		},
		RateLimitEnabled: envBool("RATE_LIMIT_ENABLED", true),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration reads an integer number of seconds from key and returns it
// as a Duration; the env vars themselves are named *_SECS throughout.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
