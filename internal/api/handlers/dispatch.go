package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/unigate/gateway/internal/dispatch"
	"github.com/unigate/gateway/internal/gwerrors"
	pkgmw "github.com/unigate/gateway/pkg/middleware"
	"github.com/unigate/gateway/pkg/models"
)

// connectionKeyHeader is the inbound header clients set to select which
// of their connections a unified or passthrough call dispatches through.
const connectionKeyHeader = "x-pica-connection-key"

// reservedQueryParams are the handler's own control params (the
// ?action= override), stripped from the outbound QueryParams before the
// request pipeline runs.
var reservedQueryParams = map[string]struct{}{
	"action": {},
}

// Unified dispatches a request against the caller's connection for the
// common model named by the {commonModel} route param, inferring the
// CRUD action from the HTTP method (or an explicit ?action= override).
func (h *Handlers) Unified(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := h.resolveConnection(r)
	if err != nil {
		writeError(w, err)
		return
	}

	commonModel := chi.URLParam(r, "commonModel")
	id := chi.URLParam(r, "id")
	action := models.DestinationAction{
		ActionName: inferAction(r, id),
		ID:         id,
	}

	req, err := h.buildRequestCrud(r)
	if err != nil {
		writeError(w, err)
		return
	}

	host := r.Host

	envelope, err := h.Dispatcher.DispatchUnified(ctx, conn, commonModel, action, host, req)
	if err != nil {
		var upstream *dispatch.UpstreamError
		if errors.As(err, &upstream) {
			writeUpstreamVerbatim(w, upstream)
			return
		}
		writeError(w, err)
		return
	}

	w.Header().Set("x-integrationos-statuscode", strconv.Itoa(envelope.Meta.UpstreamStatus))
	writeJSON(w, http.StatusOK, envelope)
}

// Passthrough dispatches a raw request against the caller's connection,
// matching the remainder of the URL path against the platform's
// registered routes (or an explicit CMD id via ?cmdId=).
func (h *Handlers) Passthrough(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := h.resolveConnection(r)
	if err != nil {
		writeError(w, err)
		return
	}

	path := chi.URLParam(r, "*")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	action := models.DestinationAction{
		IsPassthrough: true,
		Method:        r.Method,
		Path:          path,
		ID:            r.URL.Query().Get("cmdId"),
	}

	resp, body, err := h.Dispatcher.DispatchPassthrough(ctx, conn, action)
	if err != nil {
		writeError(w, err)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
}

// resolveConnection looks up the Connection named by the connection-key
// header, scoped to the caller's environment.
func (h *Handlers) resolveConnection(r *http.Request) (*models.Connection, error) {
	key := r.Header.Get(connectionKeyHeader)
	if key == "" {
		return nil, gwerrors.NewBadRequest("missing "+connectionKeyHeader+" header", "dispatch")
	}
	conn, err := h.Store.GetConnectionByKey(r.Context(), key)
	if err != nil {
		return nil, notFoundToGwErr(err, "connection")
	}
	environment := pkgmw.GetEnvironment(r.Context())
	if conn.Environment != "" && conn.Environment != environment {
		return nil, gwerrors.NewForbidden("connection does not belong to this environment", "dispatch")
	}
	return conn, nil
}

// buildRequestCrud assembles the mutable per-request envelope from the
// inbound HTTP request: JSON body (if any), query params (reserved ones
// stripped), and path params.
func (h *Handlers) buildRequestCrud(r *http.Request) (models.RequestCrud, error) {
	req := models.RequestCrud{
		Headers:     map[string][]string(r.Header),
		QueryParams: map[string]string{},
		PathParams:  map[string]string{},
	}
	for k := range r.URL.Query() {
		if _, reserved := reservedQueryParams[strings.ToLower(k)]; reserved {
			continue
		}
		req.QueryParams[k] = r.URL.Query().Get(k)
	}
	if id := chi.URLParam(r, "id"); id != "" {
		req.PathParams["id"] = id
	}

	if r.Body == nil || r.ContentLength == 0 {
		return req, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return req, gwerrors.NewBadRequest("failed to read request body: "+err.Error(), "dispatch")
	}
	if len(raw) == 0 {
		return req, nil
	}
	var body interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return req, gwerrors.NewBadRequest("request body is not valid JSON: "+err.Error(), "dispatch")
	}
	req.Body = body
	return req, nil
}

// inferAction maps the HTTP method (and whether an id path param is
// present) onto the gateway's CRUD action vocabulary. Callers can
// override via ?action=upsert|getCount.
func inferAction(r *http.Request, id string) models.CrudAction {
	if override := r.URL.Query().Get("action"); override != "" {
		return models.CrudAction(override)
	}
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			return models.ActionGetOne
		}
		return models.ActionGetMany
	case http.MethodPost:
		return models.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return models.ActionUpdate
	case http.MethodDelete:
		return models.ActionDelete
	default:
		return models.ActionCustom
	}
}

// writeUpstreamVerbatim passes an upstream non-2xx response straight
// through: real status code, real body, no gateway error wrapping.
func writeUpstreamVerbatim(w http.ResponseWriter, upstream *dispatch.UpstreamError) {
	for k, vs := range upstream.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(upstream.Status)
	w.Write(upstream.Body)
}
