package cache

import (
	"time"

	"github.com/unigate/gateway/pkg/models"
)

// ConnectionModelSchemaKey looks up a CMS by platform and common model
// name, the same compound key the store uses.
type ConnectionModelSchemaKey struct {
	Platform        string
	CommonModelName string
}

// ConnectionHeaderKey looks up a connection resolved from an inbound
// header (the gateway's connection-key header) scoped to a tenant, so
// two tenants presenting the same header value never collide.
type ConnectionHeaderKey struct {
	OwnershipID string
	Header      string
}

// CMDKey looks up a ConnectionModelDefinition by platform and action
// name, mirroring store.GetCMD.
type CMDKey struct {
	Platform   string
	ActionName string
}

type (
	EventAccessCache     = Cache[string, models.EventAccess]
	ConnectionCache      = Cache[string, models.Connection]
	ConnectionHeaderCache = Cache[ConnectionHeaderKey, models.Connection]
	SecretCache          = Cache[string, models.Secret]

	ConnectionDefinitionCache = Cache[string, models.ConnectionDefinition]

	ConnectionModelDefinitionByIDCache          = Cache[string, models.ConnectionModelDefinition]
	ConnectionModelDefinitionByActionCache      = Cache[CMDKey, models.ConnectionModelDefinition]
	ConnectionModelDefinitionDestinationCache   = Cache[models.Destination, models.ConnectionModelDefinition]
	ConnectionModelSchemaCache                  = Cache[ConnectionModelSchemaKey, models.ConnectionModelSchema]
)

func NewEventAccessCache(size int, ttl time.Duration) *EventAccessCache {
	return New[string, models.EventAccess](size, ttl)
}

func NewConnectionCache(size int, ttl time.Duration) *ConnectionCache {
	return New[string, models.Connection](size, ttl)
}

func NewConnectionHeaderCache(size int, ttl time.Duration) *ConnectionHeaderCache {
	return New[ConnectionHeaderKey, models.Connection](size, ttl)
}

func NewSecretCache(size int, ttl time.Duration) *SecretCache {
	return New[string, models.Secret](size, ttl)
}

func NewConnectionDefinitionCache(size int, ttl time.Duration) *ConnectionDefinitionCache {
	return New[string, models.ConnectionDefinition](size, ttl)
}

func NewConnectionModelDefinitionByIDCache(size int, ttl time.Duration) *ConnectionModelDefinitionByIDCache {
	return New[string, models.ConnectionModelDefinition](size, ttl)
}

func NewConnectionModelDefinitionByActionCache(size int, ttl time.Duration) *ConnectionModelDefinitionByActionCache {
	return New[CMDKey, models.ConnectionModelDefinition](size, ttl)
}

func NewConnectionModelDefinitionDestinationCache(size int, ttl time.Duration) *ConnectionModelDefinitionDestinationCache {
	return New[models.Destination, models.ConnectionModelDefinition](size, ttl)
}

func NewConnectionModelSchemaCache(size int, ttl time.Duration) *ConnectionModelSchemaCache {
	return New[ConnectionModelSchemaKey, models.ConnectionModelSchema](size, ttl)
}

// Caches bundles every named cache the gateway keeps warm, constructed
// once at startup from config.Config's cache TTL/size settings and
// handed to the resolver.
type Caches struct {
	EventAccess              *EventAccessCache
	Connection               *ConnectionCache
	ConnectionHeader         *ConnectionHeaderCache
	Secret                   *SecretCache
	ConnectionDefinition     *ConnectionDefinitionCache
	CMDByID                  *ConnectionModelDefinitionByIDCache
	CMDByAction              *ConnectionModelDefinitionByActionCache
	CMDByDestination         *ConnectionModelDefinitionDestinationCache
	ConnectionModelSchema    *ConnectionModelSchemaCache
}

// NewCaches builds every named cache with the same capacity and ttl.
// Callers with differing hot/cold paths may construct the individual
// caches directly instead.
func NewCaches(size int, ttl time.Duration) *Caches {
	return &Caches{
		EventAccess:           NewEventAccessCache(size, ttl),
		Connection:            NewConnectionCache(size, ttl),
		ConnectionHeader:      NewConnectionHeaderCache(size, ttl),
		Secret:                NewSecretCache(size, ttl),
		ConnectionDefinition:  NewConnectionDefinitionCache(size, ttl),
		CMDByID:               NewConnectionModelDefinitionByIDCache(size, ttl),
		CMDByAction:           NewConnectionModelDefinitionByActionCache(size, ttl),
		CMDByDestination:      NewConnectionModelDefinitionDestinationCache(size, ttl),
		ConnectionModelSchema: NewConnectionModelSchemaCache(size, ttl),
	}
}

// Close stops every cache's background sweep goroutine.
func (c *Caches) Close() {
	c.EventAccess.Close()
	c.Connection.Close()
	c.ConnectionHeader.Close()
	c.Secret.Close()
	c.ConnectionDefinition.Close()
	c.CMDByID.Close()
	c.CMDByAction.Close()
	c.CMDByDestination.Close()
	c.ConnectionModelSchema.Close()
}
