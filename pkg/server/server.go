// Package server provides the public entry point for initializing the
// gateway.
//
// This package exists in pkg/ (not internal/) so that an enterprise
// build can import it and compose the full server with its own
// overrides (a different Store, a TierEnforcer, additional auth
// providers).
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(fmt.Sprintf(":%d", srv.Port), srv.Handler)
package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/unigate/gateway/internal/api"
	"github.com/unigate/gateway/internal/api/handlers"
	"github.com/unigate/gateway/internal/auth"
	"github.com/unigate/gateway/internal/cache"
	"github.com/unigate/gateway/internal/catalog"
	"github.com/unigate/gateway/internal/config"
	"github.com/unigate/gateway/internal/dispatch"
	"github.com/unigate/gateway/internal/httpcaller"
	"github.com/unigate/gateway/internal/provision"
	"github.com/unigate/gateway/internal/reqpipeline"
	"github.com/unigate/gateway/internal/resolver"
	"github.com/unigate/gateway/internal/resppipeline"
	"github.com/unigate/gateway/internal/sandbox"
	"github.com/unigate/gateway/internal/store"
	"github.com/unigate/gateway/internal/telemetry"
	"github.com/unigate/gateway/pkg/contracts"

	"net/http"
)

// Server holds the initialized gateway.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store (in-memory or MongoDB).
	Store store.Store

	// Dispatcher runs unified and passthrough requests end to end.
	// Exposed so an enterprise build can reuse it outside the HTTP path
	// (e.g. a batch/backfill job).
	Dispatcher *dispatch.Dispatcher

	// Catalog is the live connection-definition directory.
	Catalog *catalog.Catalog

	// AuthChain is the pluggable authentication provider chain. OSS
	// registers an API-key provider and an internal-service provider.
	// Enterprise builds add OIDC/SAML/mTLS providers via RegisterProvider.
	AuthChain *auth.ProviderChain

	// Provisioner stands up/tears down k8s workloads for database
	// connections.
	Provisioner contracts.Provisioner

	// TierEnforcer is HTTP middleware for plan-limit enforcement.
	// Community: no-op pass-through.
	TierEnforcer contracts.TierEnforcer

	// Config is the resolved configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	shutdownTelemetry func(context.Context) error
	caches            *cache.Caches
}

// New initializes the gateway from environment configuration.
func New(ctx context.Context) (*Server, error) {
	cfg := config.Load()
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig initializes the gateway with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	dataStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return NewWithStore(ctx, cfg, dataStore)
}

// NewWithStore initializes the gateway over an externally-provided
// store. The caller owns migrating and closing it.
func NewWithStore(ctx context.Context, cfg *config.Config, dataStore store.Store) (*Server, error) {
	shutdown, err := telemetry.Init(telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	caches := buildCaches(cfg)

	sb := sandbox.New()
	caller := httpcaller.New(cfg.HTTP.ClientTimeout)
	rslv := resolver.New(dataStore, caches)
	reqPipe := reqpipeline.New(sb, cfg.Cache.Size)
	respPipe := resppipeline.New(sb, cfg.Cache.Size, cfg.Environment == "production")
	dsp := dispatch.New(rslv, reqPipe, respPipe, caller)

	cat := catalog.New(dataStore)
	if err := cat.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("initial connection-definition catalog refresh failed")
	}

	authChain := auth.NewProviderChain()
	authChain.RegisterProvider(auth.NewAPIKeyProvider(dataStore, cfg.Auth.APIKeyHeader))
	authChain.RegisterProvider(auth.NewInternalServiceProvider(cfg.Auth.ServiceSecret))

	prov := provision.New("gateway-connections", cfg.Provision.ProbeTimeout)

	h := handlers.New(dataStore, dsp, cat, prov, cfg.Provision.ProbeTimeout, cfg.Version)

	tierEnforcer := &contracts.CommunityTierEnforcer{}

	router := api.NewRouter(h, authChain, tierEnforcer)

	return &Server{
		Handler:           router,
		Store:             dataStore,
		Dispatcher:        dsp,
		Catalog:           cat,
		AuthChain:         authChain,
		Provisioner:       prov,
		TierEnforcer:      tierEnforcer,
		Config:            cfg,
		Port:              cfg.Port,
		shutdownTelemetry: shutdown,
		caches:            caches,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if strings.HasPrefix(cfg.Database.URL, "mongodb://") || strings.HasPrefix(cfg.Database.URL, "mongodb+srv://") {
		s, err := store.NewMongoStore(ctx, cfg.Database.URL, "gateway")
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info().Msg("mongo store initialized")
		return s, nil
	}

	log.Info().Msg("in-memory store initialized (no DATABASE_URL mongo target configured)")
	return store.NewMemoryStore(), nil
}

func buildCaches(cfg *config.Config) *cache.Caches {
	size := cfg.Cache.Size
	return &cache.Caches{
		EventAccess:           cache.NewEventAccessCache(size, cfg.Cache.SecretTTL),
		Connection:            cache.NewConnectionCache(size, cfg.Cache.ConnectionTTL),
		ConnectionHeader:      cache.NewConnectionHeaderCache(size, cfg.Cache.ConnectionTTL),
		Secret:                cache.NewSecretCache(size, cfg.Cache.SecretTTL),
		ConnectionDefinition:  cache.NewConnectionDefinitionCache(size, cfg.Cache.ConnectionDefinitionTTL),
		CMDByID:               cache.NewConnectionModelDefinitionByIDCache(size, cfg.Cache.ConnectionModelDefinitionTTL),
		CMDByAction:           cache.NewConnectionModelDefinitionByActionCache(size, cfg.Cache.ConnectionModelDefinitionTTL),
		CMDByDestination:      cache.NewConnectionModelDefinitionDestinationCache(size, cfg.Cache.ConnectionModelDefinitionTTL),
		ConnectionModelSchema: cache.NewConnectionModelSchemaCache(size, cfg.Cache.ConnectionModelSchemaTTL),
	}
}

// Shutdown stops background goroutines and flushes telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Catalog != nil {
		s.Catalog.Stop()
	}
	if s.caches != nil {
		s.caches.Close()
	}
	if s.shutdownTelemetry != nil {
		return s.shutdownTelemetry(ctx)
	}
	return nil
}
