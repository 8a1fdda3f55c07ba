// Package catalog provides a live, thread-safe read-through cache of
// the platform integrations (ConnectionDefinitions) the gateway knows
// about — the list a client browses before creating a Connection.
//
// The catalog periodically refreshes from the store so a connection
// definition seeded by an out-of-band admin process becomes visible
// without a gateway restart, and serves reads from memory the rest of
// the time so the catalog listing endpoint never waits on the store.
package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unigate/gateway/internal/store"
	"github.com/unigate/gateway/pkg/models"
)

// defaultRefreshInterval governs how often the catalog re-lists
// connection definitions from the store in the background.
const defaultRefreshInterval = 5 * time.Minute

// Catalog is a thread-safe, auto-refreshing connection-definition
// directory, keyed by platform.
type Catalog struct {
	mu    sync.RWMutex
	byKey map[string]*models.ConnectionDefinition

	store           store.ConnectionDefinitionStore
	refreshInterval time.Duration
	stopCh          chan struct{}
	running         bool
}

// New creates a catalog backed by s. Call Start to begin background
// refresh; Lookup/ListAll work against an empty catalog until the
// first Refresh completes.
func New(s store.ConnectionDefinitionStore) *Catalog {
	return &Catalog{
		byKey:           make(map[string]*models.ConnectionDefinition),
		store:           s,
		refreshInterval: defaultRefreshInterval,
	}
}

// Start performs an initial synchronous Refresh and then begins a
// background refresh loop. Returns the initial refresh's error, if any,
// but still starts the loop — a transient store outage at boot
// shouldn't prevent later refreshes from healing the catalog.
func (c *Catalog) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	err := c.Refresh(ctx)

	go c.refreshLoop()

	return err
}

// Stop ends the background refresh loop.
func (c *Catalog) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	close(c.stopCh)
}

func (c *Catalog) refreshLoop() {
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := c.Refresh(ctx); err != nil {
				log.Warn().Err(err).Msg("catalog refresh failed")
			}
			cancel()
		}
	}
}

// Refresh re-lists connection definitions from the store and replaces
// the in-memory index wholesale.
func (c *Catalog) Refresh(ctx context.Context) error {
	defs, err := c.store.ListConnectionDefinitions(ctx)
	if err != nil {
		return err
	}

	byKey := make(map[string]*models.ConnectionDefinition, len(defs))
	for i := range defs {
		d := defs[i]
		byKey[d.Platform] = &d
	}

	c.mu.Lock()
	c.byKey = byKey
	c.mu.Unlock()

	log.Debug().Int("platforms", len(byKey)).Msg("connection definition catalog refreshed")
	return nil
}

// Lookup returns the connection definition for platform, if cached.
func (c *Catalog) Lookup(platform string) (*models.ConnectionDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.byKey[platform]
	return def, ok
}

// ListAll returns every cached connection definition, sorted by
// platform for a stable listing order.
func (c *Catalog) ListAll() []models.ConnectionDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.ConnectionDefinition, 0, len(c.byKey))
	for _, def := range c.byKey {
		out = append(out, *def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}

// Register inserts or replaces a single connection definition in the
// in-memory index without waiting for the next background refresh —
// used right after an admin upserts a new platform definition so it's
// immediately visible to the catalog read endpoint.
func (c *Catalog) Register(def models.ConnectionDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[def.Platform] = &def
}
