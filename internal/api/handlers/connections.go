package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/unigate/gateway/internal/gwerrors"
	"github.com/unigate/gateway/internal/store"
	pkgmw "github.com/unigate/gateway/pkg/middleware"
	"github.com/unigate/gateway/pkg/models"
)

// connectionRequest is the client-supplied payload for connection creation.
type connectionRequest struct {
	Platform        string                 `json:"platform"`
	PlatformVersion string                 `json:"platformVersion"`
	Namespace       string                 `json:"namespace"`
	Identity        string                 `json:"identity,omitempty"`
	Settings        map[string]interface{} `json:"settings,omitempty"`
	Secret          json.RawMessage        `json:"secret,omitempty"`
}

// sanitizedConnection is the read model get_vault_connections-equivalent:
// Connection joined with its ConnectionDefinition's description, with
// SecretsServiceID stripped.
type sanitizedConnection struct {
	ID              string                 `json:"id"`
	Key             string                 `json:"key"`
	Platform        string                 `json:"platform"`
	PlatformVersion string                 `json:"platformVersion"`
	Description     string                 `json:"description,omitempty"`
	Type            models.ConnectionType  `json:"type"`
	Environment     string                 `json:"environment"`
	Settings        map[string]interface{} `json:"settings,omitempty"`
	Active          bool                   `json:"active"`
	CreatedAt       int64                  `json:"createdAt"`
}

// CreateConnection creates a Connection, generating its globally-unique
// key, and — for DatabaseSql/DatabaseNoSql platforms — provisions the
// backing k8s workload before returning.
func (h *Handlers) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gwerrors.NewBadRequest("invalid request body: "+err.Error(), "connection"))
		return
	}
	if req.Platform == "" {
		writeError(w, gwerrors.NewBadRequest("platform is required", "connection"))
		return
	}
	if len(req.Identity) > 128 {
		writeError(w, gwerrors.NewBadRequest("identity must not exceed 128 characters", "connection"))
		return
	}

	ctx := r.Context()
	def, err := h.Store.GetConnectionDefinition(ctx, req.Platform)
	if err != nil {
		writeError(w, notFoundToGwErr(err, "connection_definition"))
		return
	}

	environment := pkgmw.GetEnvironment(ctx)
	namespace := req.Namespace
	if namespace == "" {
		namespace = "default"
	}

	ownership := identityOwnership(r)
	conn := &models.Connection{
		ID:              uuid.NewString(),
		Platform:        req.Platform,
		PlatformVersion: req.PlatformVersion,
		Type:            def.Type,
		Environment:     environment,
		Ownership: models.Ownership{
			ID:             ownership.ClientID,
			ClientID:       ownership.ClientID,
			OrganizationID: ownership.OrganizationID,
		},
		Settings: req.Settings,
		RecordMetadata: models.RecordMetadata{
			CreatedAt: time.Now().UnixMilli(),
			UpdatedAt: time.Now().UnixMilli(),
			Active:    true,
		},
	}
	conn.Key = connectionKey(environment, req.Platform, namespace, req.Identity)

	if req.Secret != nil {
		secret := &models.Secret{ID: uuid.NewString(), Value: req.Secret}
		if err := h.Store.PutSecret(ctx, secret); err != nil {
			writeError(w, gwerrors.NewUnknownError("failed to store secret: "+err.Error(), "connection"))
			return
		}
		conn.SecretsServiceID = secret.ID
	}

	if h.Provisioner != nil && (conn.Type == models.ConnectionTypeDatabaseSQL || conn.Type == models.ConnectionTypeDatabaseNoSQL) {
		if err := h.Provisioner.Provision(ctx, conn, def); err != nil {
			writeError(w, gwerrors.NewConnectionError("provisioning failed: "+err.Error(), "connection"))
			return
		}
	}

	if err := h.Store.CreateConnection(ctx, conn); err != nil {
		writeError(w, gwerrors.NewUnknownError("failed to create connection: "+err.Error(), "connection"))
		return
	}

	writeJSON(w, http.StatusCreated, conn)
}

// connectionKey builds `{env}::{platform}::{namespace}::{suffix}`, where
// suffix is a bare uuid32 when no caller identity is supplied, or
// `uuid32|identity` with spaces and colons rewritten to dashes.
func connectionKey(environment, platform, namespace, identity string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	if identity != "" {
		sanitized := strings.NewReplacer(" ", "-", ":", "-").Replace(identity)
		suffix = suffix + "|" + sanitized
	}
	return strings.Join([]string{environment, platform, namespace, suffix}, "::")
}

// GetConnection returns a single sanitized connection.
func (h *Handlers) GetConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conn, err := h.Store.GetConnection(r.Context(), id)
	if err != nil {
		writeError(w, notFoundToGwErr(err, "connection"))
		return
	}
	writeJSON(w, http.StatusOK, h.sanitize(r.Context(), conn))
}

// ListConnections returns the sanitized connection listing scoped to the
// caller's environment and ownership.
func (h *Handlers) ListConnections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	environment := pkgmw.GetEnvironment(ctx)
	ownership := identityOwnership(r)

	filter := store.ListFilter{Limit: queryInt(r, "limit", 50), Offset: queryInt(r, "offset", 0)}
	conns, err := h.Store.ListConnections(ctx, environment, ownership, filter)
	if err != nil {
		writeError(w, gwerrors.NewUnknownError("failed to list connections: "+err.Error(), "connection"))
		return
	}

	out := make([]sanitizedConnection, 0, len(conns))
	for i := range conns {
		out = append(out, h.sanitize(ctx, &conns[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"connections": out})
}

func (h *Handlers) sanitize(ctx context.Context, conn *models.Connection) sanitizedConnection {
	description := ""
	if def, ok := h.Catalog.Lookup(conn.Platform); ok {
		description = def.Description
	}
	return sanitizedConnection{
		ID:              conn.ID,
		Key:             conn.Key,
		Platform:        conn.Platform,
		PlatformVersion: conn.PlatformVersion,
		Description:     description,
		Type:            conn.Type,
		Environment:     conn.Environment,
		Settings:        conn.Settings,
		Active:          conn.RecordMetadata.Active,
		CreatedAt:       conn.RecordMetadata.CreatedAt,
	}
}

// DeleteConnection soft-deletes a connection and, for database
// connections, tears down its provisioned k8s workload.
func (h *Handlers) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	conn, err := h.Store.GetConnection(ctx, id)
	if err != nil {
		writeError(w, notFoundToGwErr(err, "connection"))
		return
	}

	if h.Provisioner != nil && (conn.Type == models.ConnectionTypeDatabaseSQL || conn.Type == models.ConnectionTypeDatabaseNoSQL) {
		if err := h.Provisioner.Deprovision(ctx, conn); err != nil {
			log.Warn().Err(err).Str("connection", id).Msg("deprovision failed during delete")
		}
	}

	if err := h.Store.DeleteConnection(ctx, id); err != nil {
		writeError(w, gwerrors.NewUnknownError("failed to delete connection: "+err.Error(), "connection"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestConnection runs the two-stage wait: the provisioning probe-timeout
// wait always runs first for SQL/NoSQL connections, then the platform's
// configured test_delay_in_millis wait runs. On failure of a freshly
// provisioned database connection, the workload is torn down.
func (h *Handlers) TestConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	conn, err := h.Store.GetConnection(ctx, id)
	if err != nil {
		writeError(w, notFoundToGwErr(err, "connection"))
		return
	}
	def, err := h.Store.GetConnectionDefinition(ctx, conn.Platform)
	if err != nil {
		writeError(w, notFoundToGwErr(err, "connection_definition"))
		return
	}

	if conn.Type == models.ConnectionTypeDatabaseSQL || conn.Type == models.ConnectionTypeDatabaseNoSQL {
		if h.Provisioner != nil {
			if err := h.Provisioner.WaitReady(ctx, conn); err != nil {
				if depErr := h.Provisioner.Deprovision(ctx, conn); depErr != nil {
					log.Warn().Err(depErr).Str("connection", id).Msg("deprovision-on-failure failed")
				}
				writeError(w, gwerrors.NewConnectionError("connection did not become ready: "+err.Error(), "test_connection"))
				return
			}
		}
	}

	switch {
	case def.TestDelayInMillis < 0:
		log.Warn().Int64("test_delay_in_millis", def.TestDelayInMillis).Str("connection", id).Msg("negative test delay ignored")
	case def.TestDelayInMillis > 65535:
		writeError(w, gwerrors.NewInvalidArgument("test_delay_in_millis exceeds 65535", "test_connection"))
		return
	case def.TestDelayInMillis > 0:
		select {
		case <-time.After(time.Duration(def.TestDelayInMillis) * time.Millisecond):
		case <-ctx.Done():
			writeError(w, gwerrors.NewTimeout("test connection cancelled", "test_connection"))
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func notFoundToGwErr(err error, entity string) error {
	if _, ok := err.(*store.ErrNotFound); ok {
		return gwerrors.NewKeyNotFound(err.Error(), entity)
	}
	return gwerrors.NewUnknownError(err.Error(), entity)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
