// Package resolver joins the three pieces of state a dispatch needs
// before it can build an outbound request: the platform's connection
// model definition, the connection's secret, and the common model's
// schema. All three lookups run concurrently and are joined with a
// WaitGroup, the same shape the gateway uses elsewhere for concurrent
// step execution.
package resolver

import (
	"context"
	"sync"

	"github.com/unigate/gateway/internal/cache"
	"github.com/unigate/gateway/internal/gwerrors"
	"github.com/unigate/gateway/internal/store"
	"github.com/unigate/gateway/pkg/models"
)

// Resolved bundles the three dependencies a dispatch needs to build
// and send its outbound request.
type Resolved struct {
	CMD    *models.ConnectionModelDefinition
	Secret *models.Secret
	CMS    *models.ConnectionModelSchema
}

// Resolver joins CMD, Secret, and CMS lookups for a dispatch, each
// backed by its own cache with store fallback.
type Resolver struct {
	store  store.Store
	caches *cache.Caches
}

// New creates a Resolver over store s and the process-wide cache set.
func New(s store.Store, caches *cache.Caches) *Resolver {
	return &Resolver{store: s, caches: caches}
}

// Resolve issues the CMD, Secret, and CMS lookups concurrently for the
// given connection, action and common model, then waits for all three.
// Any single failure fails the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, conn *models.Connection, commonModelName string, actionName models.CrudAction) (*Resolved, error) {
	var wg sync.WaitGroup
	var cmd *models.ConnectionModelDefinition
	var secret *models.Secret
	var cms *models.ConnectionModelSchema
	errs := make(chan error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		v, err := r.resolveCMD(ctx, conn.Platform, string(actionName))
		if err != nil {
			errs <- err
			return
		}
		cmd = v
	}()
	go func() {
		defer wg.Done()
		v, err := r.resolveSecret(ctx, conn)
		if err != nil {
			errs <- err
			return
		}
		secret = v
	}()
	go func() {
		defer wg.Done()
		v, err := r.resolveCMS(ctx, conn.Platform, commonModelName)
		if err != nil {
			errs <- err
			return
		}
		cms = v
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &Resolved{CMD: cmd, Secret: secret, CMS: cms}, nil
}

// ResolveSecret resolves conn's secret, for passthrough dispatch where
// only the secret (not the full three-way join) is needed.
func (r *Resolver) ResolveSecret(ctx context.Context, conn *models.Connection) (*models.Secret, error) {
	return r.resolveSecret(ctx, conn)
}

// ResolveCMDByID resolves a CMD directly by id, for passthrough dispatch
// when the caller already knows which CMD it wants.
func (r *Resolver) ResolveCMDByID(ctx context.Context, id string) (*models.ConnectionModelDefinition, error) {
	if v, ok := r.caches.CMDByID.Get(id); ok {
		return &v, nil
	}
	v, err := r.store.GetCMDByID(ctx, id)
	if err != nil {
		return nil, notFoundToInternal(err, "connection_model_definition")
	}
	r.caches.CMDByID.Insert(id, *v)
	return v, nil
}

// ListCMDs returns every CMD registered for platform, for passthrough
// route matching. Not cached: route matching needs the full candidate
// set, and platforms register few enough routes that this is cheap.
func (r *Resolver) ListCMDs(ctx context.Context, platform string) ([]models.ConnectionModelDefinition, error) {
	cmds, err := r.store.ListCMDs(ctx, platform)
	if err != nil {
		return nil, notFoundToInternal(err, "connection_model_definition")
	}
	return cmds, nil
}

func (r *Resolver) resolveCMD(ctx context.Context, platform, actionName string) (*models.ConnectionModelDefinition, error) {
	key := cache.CMDKey{Platform: platform, ActionName: actionName}
	if v, ok := r.caches.CMDByAction.Get(key); ok {
		return &v, nil
	}
	v, err := r.store.GetCMD(ctx, platform, actionName)
	if err != nil {
		return nil, notFoundToInternal(err, "connection_model_definition")
	}
	r.caches.CMDByAction.Insert(key, *v)
	return v, nil
}

func (r *Resolver) resolveSecret(ctx context.Context, conn *models.Connection) (*models.Secret, error) {
	if v, ok := r.caches.Secret.Get(conn.SecretsServiceID); ok {
		return &v, nil
	}
	v, err := r.store.GetSecret(ctx, conn.SecretsServiceID)
	if err != nil {
		return nil, notFoundToInternal(err, "secret")
	}
	r.caches.Secret.Insert(conn.SecretsServiceID, *v)
	return v, nil
}

func (r *Resolver) resolveCMS(ctx context.Context, platform, commonModelName string) (*models.ConnectionModelSchema, error) {
	key := cache.ConnectionModelSchemaKey{Platform: platform, CommonModelName: commonModelName}
	if v, ok := r.caches.ConnectionModelSchema.Get(key); ok {
		return &v, nil
	}
	v, err := r.store.GetCMS(ctx, platform, commonModelName)
	if err != nil {
		return nil, notFoundToInternal(err, "connection_model_schema")
	}
	r.caches.ConnectionModelSchema.Insert(key, *v)
	return v, nil
}

func notFoundToInternal(err error, entity string) error {
	if _, ok := err.(*store.ErrNotFound); ok {
		return gwerrors.NewKeyNotFound(err.Error(), entity)
	}
	return err
}
