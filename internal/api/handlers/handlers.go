// Package handlers implements the gateway's HTTP surface: connection
// lifecycle, the connection-definition catalog, and unified/passthrough
// dispatch. Handlers take the store and provisioner through interfaces
// (internal/store, pkg/contracts) and the dispatcher and catalog as
// concrete types.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unigate/gateway/internal/catalog"
	"github.com/unigate/gateway/internal/dispatch"
	"github.com/unigate/gateway/internal/gwerrors"
	"github.com/unigate/gateway/internal/store"
	"github.com/unigate/gateway/pkg/contracts"
	pkgmw "github.com/unigate/gateway/pkg/middleware"
)

// Handlers bundles the collaborators every HTTP handler needs.
type Handlers struct {
	Store       store.Store
	Dispatcher  *dispatch.Dispatcher
	Catalog     *catalog.Catalog
	Provisioner contracts.Provisioner
	ProbeTimeout time.Duration
	Version     string
}

// New builds the handler collection.
func New(s store.Store, d *dispatch.Dispatcher, cat *catalog.Catalog, prov contracts.Provisioner, probeTimeout time.Duration, version string) *Handlers {
	return &Handlers{
		Store:        s,
		Dispatcher:   d,
		Catalog:      cat,
		Provisioner:  prov,
		ProbeTimeout: probeTimeout,
		Version:      version,
	}
}

// Health reports liveness; it never touches the store, so it stays up
// even when the backing database is unreachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version reports readiness by pinging the store, plus the build version.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
		log.Warn().Err(err).Msg("store ping failed")
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": h.Version, "store": status})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}

// writeError renders err as the gateway's standard error JSON shape. A
// *dispatch.UpstreamError is a sentinel this function never sees —
// callers that dispatch upstream calls must check for it with
// errors.As before falling back to writeError.
func writeError(w http.ResponseWriter, err error) {
	gwErr, ok := gwerrors.As(err)
	if !ok {
		gwErr = gwerrors.NewUnknownError(err.Error(), "")
	}
	body, marshalErr := gwErr.JSON()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gwErr.Status())
	if marshalErr != nil {
		w.Write([]byte(`{"status":"error"}`))
		return
	}
	w.Write(body)
}

// identityOwnership extracts the requesting tenant's ownership scope
// from the authenticated identity, or the zero value for unauthenticated
// requests allowed through by GATEWAY_REQUIRE_AUTH=false.
func identityOwnership(r *http.Request) store.Ownership {
	identity := pkgmw.GetIdentity(r.Context())
	if identity == nil {
		return store.Ownership{}
	}
	return store.Ownership{
		ClientID:       identity.EventAccess.Ownership.ClientID,
		OrganizationID: identity.EventAccess.Ownership.OrganizationID,
	}
}
