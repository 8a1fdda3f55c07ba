// Package store — in-memory Store implementation.
// Used for local development and tests when no MongoDB connection is
// configured. Data does not survive process restarts.
package store

import (
	"context"
	"sync"

	"github.com/unigate/gateway/pkg/models"
)

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu sync.RWMutex

	connections   map[string]*models.Connection               // key: id
	connByKey     map[string]string                           // connection key -> id
	definitions   map[string]*models.ConnectionDefinition      // key: platform
	cmds          map[string]*models.ConnectionModelDefinition // key: platform:actionName
	cmdsByID      map[string]*models.ConnectionModelDefinition // key: id
	schemas       map[string]*models.ConnectionModelSchema     // key: platform:commonModelName
	secrets       map[string]*models.Secret                   // key: id
	eventAccesses map[string]*models.EventAccess               // key: accessKey
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		connections:   make(map[string]*models.Connection),
		connByKey:     make(map[string]string),
		definitions:   make(map[string]*models.ConnectionDefinition),
		cmds:          make(map[string]*models.ConnectionModelDefinition),
		cmdsByID:      make(map[string]*models.ConnectionModelDefinition),
		schemas:       make(map[string]*models.ConnectionModelSchema),
		secrets:       make(map[string]*models.Secret),
		eventAccesses: make(map[string]*models.EventAccess),
	}
}

func (m *MemoryStore) Ping(_ context.Context) error      { return nil }
func (m *MemoryStore) Close() error                      { return nil }
func (m *MemoryStore) Migrate(_ context.Context) error   { return nil }

func cmdKey(platform, actionName string) string {
	return platform + ":" + actionName
}

// ── Connection Store ─────────────────────────────────────────

func (m *MemoryStore) ListConnections(_ context.Context, environment string, ownership Ownership, filter ListFilter) ([]models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Connection
	for _, c := range m.connections {
		if !c.RecordMetadata.Active {
			continue
		}
		if environment != "" && c.Environment != environment {
			continue
		}
		if ownership.ClientID != "" && c.Ownership.ClientID != ownership.ClientID {
			continue
		}
		if ownership.OrganizationID != "" && c.Ownership.OrganizationID != ownership.OrganizationID {
			continue
		}
		result = append(result, *c)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) GetConnection(_ context.Context, id string) (*models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.connections[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "connection", Key: id}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) GetConnectionByKey(_ context.Context, key string) (*models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.connByKey[key]
	if !ok {
		return nil, &ErrNotFound{Entity: "connection", Key: key}
	}
	cp := *m.connections[id]
	return &cp, nil
}

func (m *MemoryStore) CreateConnection(_ context.Context, conn *models.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *conn
	cp.RecordMetadata.Active = true
	m.connections[conn.ID] = &cp
	m.connByKey[conn.Key] = conn.ID
	return nil
}

func (m *MemoryStore) UpdateConnection(_ context.Context, conn *models.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[conn.ID]; !ok {
		return &ErrNotFound{Entity: "connection", Key: conn.ID}
	}
	cp := *conn
	m.connections[conn.ID] = &cp
	m.connByKey[conn.Key] = conn.ID
	return nil
}

func (m *MemoryStore) DeleteConnection(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connections[id]
	if !ok {
		return &ErrNotFound{Entity: "connection", Key: id}
	}
	c.RecordMetadata.Active = false
	return nil
}

// ── Connection Definition Store ──────────────────────────────

func (m *MemoryStore) ListConnectionDefinitions(_ context.Context) ([]models.ConnectionDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.ConnectionDefinition, 0, len(m.definitions))
	for _, d := range m.definitions {
		result = append(result, *d)
	}
	return result, nil
}

func (m *MemoryStore) GetConnectionDefinition(_ context.Context, platform string) (*models.ConnectionDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.definitions[platform]
	if !ok {
		return nil, &ErrNotFound{Entity: "connection_definition", Key: platform}
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) UpsertConnectionDefinition(_ context.Context, def *models.ConnectionDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *def
	m.definitions[def.Platform] = &cp
	return nil
}

// ── CMD Store ─────────────────────────────────────────────────

func (m *MemoryStore) ListCMDs(_ context.Context, platform string) ([]models.ConnectionModelDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.ConnectionModelDefinition
	for _, c := range m.cmdsByID {
		if c.Platform == platform {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *MemoryStore) GetCMD(_ context.Context, platform, actionName string) (*models.ConnectionModelDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cmds[cmdKey(platform, actionName)]
	if !ok {
		return nil, &ErrNotFound{Entity: "connection_model_definition", Key: cmdKey(platform, actionName)}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) GetCMDByID(_ context.Context, id string) (*models.ConnectionModelDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cmdsByID[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "connection_model_definition", Key: id}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) UpsertCMD(_ context.Context, cmd *models.ConnectionModelDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cmd
	m.cmds[cmdKey(cmd.Platform, string(cmd.ActionName))] = &cp
	m.cmdsByID[cmd.ID] = &cp
	return nil
}

// ── CMS Store ─────────────────────────────────────────────────

func (m *MemoryStore) GetCMS(_ context.Context, platform, commonModelName string) (*models.ConnectionModelSchema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := platform + ":" + commonModelName
	s, ok := m.schemas[k]
	if !ok {
		return nil, &ErrNotFound{Entity: "connection_model_schema", Key: k}
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) UpsertCMS(_ context.Context, cms *models.ConnectionModelSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cms
	m.schemas[cms.Platform+":"+cms.Mapping.CommonModelName] = &cp
	return nil
}

// ── Secret Store ──────────────────────────────────────────────

func (m *MemoryStore) GetSecret(_ context.Context, id string) (*models.Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.secrets[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "secret", Key: id}
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) PutSecret(_ context.Context, secret *models.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *secret
	m.secrets[secret.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteSecret(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, id)
	return nil
}

// ── Event Access Store ────────────────────────────────────────

func (m *MemoryStore) GetEventAccessByKey(_ context.Context, accessKey string) (*models.EventAccess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ea, ok := m.eventAccesses[accessKey]
	if !ok {
		return nil, &ErrNotFound{Entity: "event_access", Key: accessKey}
	}
	cp := *ea
	return &cp, nil
}

// PutEventAccess is a test/seed helper; production event accesses are
// created through the same secrets-service flow that issues API keys.
func (m *MemoryStore) PutEventAccess(ea *models.EventAccess) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ea
	m.eventAccesses[ea.AccessKey] = &cp
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
