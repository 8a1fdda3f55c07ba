// Package store provides the storage interface and implementations for the
// gateway. A MongoDB-backed implementation serves production; an in-memory
// implementation backs tests and local development without a database.
package store

import (
	"context"
	"time"

	"github.com/unigate/gateway/pkg/models"
)

// Store is the primary storage interface for the gateway. All handler and
// pipeline code depends on this interface, making it easy to swap between
// in-memory (tests) and MongoDB (production) implementations.
type Store interface {
	ConnectionStore
	ConnectionDefinitionStore
	ConnectionModelDefinitionStore
	ConnectionModelSchemaStore
	SecretStore
	EventAccessStore

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate ensures required indexes exist (collations, uniqueness).
	Migrate(ctx context.Context) error
}

// ── Connection Store ─────────────────────────────────────────

type ConnectionStore interface {
	ListConnections(ctx context.Context, environment string, ownership Ownership, filter ListFilter) ([]models.Connection, error)
	GetConnection(ctx context.Context, id string) (*models.Connection, error)
	GetConnectionByKey(ctx context.Context, key string) (*models.Connection, error)
	CreateConnection(ctx context.Context, conn *models.Connection) error
	UpdateConnection(ctx context.Context, conn *models.Connection) error
	DeleteConnection(ctx context.Context, id string) error // soft delete: RecordMetadata.Active = false
}

// Ownership narrows a ConnectionStore list to a tenant; either field may be
// empty to skip that scope.
type Ownership struct {
	ClientID       string
	OrganizationID string
}

// ── Connection Definition Store ──────────────────────────────

type ConnectionDefinitionStore interface {
	ListConnectionDefinitions(ctx context.Context) ([]models.ConnectionDefinition, error)
	GetConnectionDefinition(ctx context.Context, platform string) (*models.ConnectionDefinition, error)
	UpsertConnectionDefinition(ctx context.Context, def *models.ConnectionDefinition) error
}

// ── Connection Model Definition (CMD) Store ──────────────────

type ConnectionModelDefinitionStore interface {
	ListCMDs(ctx context.Context, platform string) ([]models.ConnectionModelDefinition, error)
	GetCMD(ctx context.Context, platform, actionName string) (*models.ConnectionModelDefinition, error)
	GetCMDByID(ctx context.Context, id string) (*models.ConnectionModelDefinition, error)
	UpsertCMD(ctx context.Context, cmd *models.ConnectionModelDefinition) error
}

// ── Connection Model Schema (CMS) Store ──────────────────────

type ConnectionModelSchemaStore interface {
	GetCMS(ctx context.Context, platform, commonModelName string) (*models.ConnectionModelSchema, error)
	UpsertCMS(ctx context.Context, cms *models.ConnectionModelSchema) error
}

// ── Secret Store ──────────────────────────────────────────────

type SecretStore interface {
	GetSecret(ctx context.Context, id string) (*models.Secret, error)
	PutSecret(ctx context.Context, secret *models.Secret) error
	DeleteSecret(ctx context.Context, id string) error
}

// ── Event Access Store ────────────────────────────────────────

// EventAccessStore resolves the inbound API key header to the caller's
// tenant scope.
type EventAccessStore interface {
	GetEventAccessByKey(ctx context.Context, accessKey string) (*models.EventAccess, error)
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ── Filter helpers ──────────────────────────────────────────

// ListFilter provides common pagination/filter options.
type ListFilter struct {
	Limit  int
	Offset int
	Since  *time.Time
}
