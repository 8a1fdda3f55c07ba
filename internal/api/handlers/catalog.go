package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unigate/gateway/internal/gwerrors"
)

// ListConnectionDefinitions serves the platform catalog: every
// registered platform integration, read from the in-memory catalog
// rather than the store directly.
func (h *Handlers) ListConnectionDefinitions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"connectionDefinitions": h.Catalog.ListAll()})
}

// GetConnectionDefinition serves a single platform's connection
// definition, including the CMDs registered for it.
func (h *Handlers) GetConnectionDefinition(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	def, ok := h.Catalog.Lookup(platform)
	if !ok {
		writeError(w, gwerrors.NewKeyNotFound("no connection definition for platform "+platform, "connection_definition"))
		return
	}

	cmds, err := h.Store.ListCMDs(r.Context(), platform)
	if err != nil {
		writeError(w, gwerrors.NewUnknownError("failed to list actions: "+err.Error(), "connection_definition"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connectionDefinition": def,
		"actions":              cmds,
	})
}
