// Package resppipeline runs the response transform: JSONPath extraction
// of the upstream body, pagination cursor extraction, and common-model
// mapping, producing the pieces of the envelope that depend on the
// upstream response.
package resppipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/PaesslerAG/jsonpath"

	"github.com/unigate/gateway/internal/gwerrors"
	"github.com/unigate/gateway/internal/sandbox"
	"github.com/unigate/gateway/pkg/models"
)

// Pipeline runs the response transform pipeline.
type Pipeline struct {
	sandbox         *sandbox.Sandbox
	sandboxCapacity int
	production      bool
}

// New creates a Pipeline. production gates the strict JSONPath
// cardinality check (§4.7 step 4), which only applies off of production.
func New(sb *sandbox.Sandbox, sandboxCapacity int, production bool) *Pipeline {
	return &Pipeline{sandbox: sb, sandboxCapacity: sandboxCapacity, production: production}
}

// Result carries everything the envelope needs from the response side.
type Result struct {
	Status      int
	Headers     http.Header
	RawBody     []byte
	IsError     bool
	Unified     interface{}
	Passthrough interface{}
	Pagination  map[string]interface{}
}

// Run executes the response transform pipeline for one dispatch.
func (p *Pipeline) Run(ctx context.Context, cmd *models.ConnectionModelDefinition, action models.DestinationAction, resp *http.Response, rawBody []byte) (*Result, error) {
	result := &Result{Status: resp.StatusCode, Headers: resp.Header, RawBody: rawBody}

	// 2. Non-2xx short-circuits: the raw body is returned unparsed, with
	// no further mapping.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.IsError = true
		return result, nil
	}

	// 3. Parse JSON (nil if empty).
	var parsed interface{}
	if len(rawBody) > 0 {
		if err := json.Unmarshal(rawBody, &parsed); err != nil {
			return nil, gwerrors.NewIOErr(err.Error(), "response_body")
		}
	}

	// 4. Extract body at the configured JSONPath.
	body, err := p.extractObject(cmd, action, parsed)
	if err != nil {
		return nil, err
	}

	// 5. Passthrough snapshot.
	if action.Passthrough {
		result.Passthrough = body
	}

	// 6. Pagination (GetMany only).
	if action.ActionName == models.ActionGetMany && cmd.Mapping != nil && cmd.Mapping.ToCommonModel != "" {
		pagination, err := p.extractPagination(ctx, cmd, action, parsed)
		if err != nil {
			return nil, err
		}
		result.Pagination = pagination
	}

	// 7. Common-model mapping by action.
	unified, err := p.mapCommonModel(ctx, cmd, action, body)
	if err != nil {
		return nil, err
	}
	result.Unified = unified

	return result, nil
}

func (p *Pipeline) extractObject(cmd *models.ConnectionModelDefinition, action models.DestinationAction, parsed interface{}) (interface{}, error) {
	path := ""
	if cmd.PlatformInfo.Paths != nil {
		path = cmd.PlatformInfo.Paths.ResponseObject
	}
	if path == "" {
		return parsed, nil
	}

	cardinalityChecked := !p.production && (action.ActionName == models.ActionGetMany || action.ActionName == models.ActionGetOne)

	wrapped := map[string]interface{}{"body": parsed}
	value, matches, err := evalJSONPath(path, wrapped)
	if err != nil {
		if cardinalityChecked {
			return nil, gwerrors.NewUnprocessableEntity("response object selection matched no nodes", "response_object")
		}
		return nil, gwerrors.NewIOErr(err.Error(), "response_object")
	}

	if cardinalityChecked && (matches == 0 || matches > 1) {
		return nil, gwerrors.NewUnprocessableEntity("response object selection cardinality mismatch", "response_object")
	}
	return value, nil
}

// evalJSONPath returns the selected value along with how many nodes
// the path matched, so callers can apply the cardinality check.
// PaesslerAG/jsonpath returns a []interface{} when a path can match
// more than one node (wildcards, filters, unions, slices, recursive
// descent); a path without those always matches exactly one node when
// it resolves at all, even when that node is itself an array.
func evalJSONPath(path string, doc interface{}) (interface{}, int, error) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, 0, err
	}
	multi := strings.ContainsAny(path, "*?,:") || strings.Contains(path, "..")
	if list, ok := v.([]interface{}); ok && multi {
		return v, len(list), nil
	}
	return v, 1, nil
}

func (p *Pipeline) extractPagination(ctx context.Context, cmd *models.ConnectionModelDefinition, action models.DestinationAction, parsed interface{}) (map[string]interface{}, error) {
	var cursor interface{}
	if cmd.PlatformInfo.Paths != nil && cmd.PlatformInfo.Paths.ResponseCursor != "" {
		wrapped := map[string]interface{}{"body": parsed}
		v, _, err := evalJSONPath(cmd.PlatformInfo.Paths.ResponseCursor, wrapped)
		if err == nil {
			cursor = v
		}
	}

	ns := sandbox.Namespace(cmd.ID, p.sandboxCapacity)
	arg := map[string]interface{}{
		"pagination": cursor,
	}
	out, err := p.sandbox.Run(ctx, ns, cmd.Mapping.ToCommonModel, "mapToCrudRequest", arg)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, gwerrors.NewSerializeError(err.Error(), "pagination")
	}
	var respCrud models.ResponseCrud
	if err := json.Unmarshal(raw, &respCrud); err != nil {
		return nil, gwerrors.NewDeserializeError(err.Error(), "pagination")
	}
	return respCrud.Pagination, nil
}

func (p *Pipeline) mapCommonModel(ctx context.Context, cmd *models.ConnectionModelDefinition, action models.DestinationAction, body interface{}) (interface{}, error) {
	switch action.ActionName {
	case models.ActionUpdate, models.ActionDelete:
		return nil, nil
	case models.ActionGetCount, models.ActionCustom:
		return body, nil
	}

	if cmd.Mapping == nil || cmd.Mapping.ToCommonModel == "" {
		return nil, gwerrors.NewInvalidArgument("missing to_common_model mapping for action "+string(action.ActionName), "mapping")
	}
	ns := sandbox.Namespace(cmd.ID, p.sandboxCapacity)

	if action.ActionName == models.ActionGetMany {
		items, ok := body.([]interface{})
		if !ok {
			return nil, gwerrors.NewInvalidArgument("getMany response body is not an array", "response_body")
		}
		mapped := make([]interface{}, len(items))
		errs := make([]error, len(items))
		var wg sync.WaitGroup
		wg.Add(len(items))
		for i, item := range items {
			go func(i int, item interface{}) {
				defer wg.Done()
				out, err := p.sandbox.Run(ctx, ns, cmd.Mapping.ToCommonModel, "mapToCommonModel", item)
				if err != nil {
					errs[i] = err
					return
				}
				mapped[i] = applyModifyTokenFallback(out)
			}(i, item)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		return mapped, nil
	}

	// GetOne / Create / Upsert: map the single object.
	out, err := p.sandbox.Run(ctx, ns, cmd.Mapping.ToCommonModel, "mapToCommonModel", body)
	if err != nil {
		return nil, err
	}
	return applyModifyTokenFallback(out), nil
}

// applyModifyTokenFallback copies id (or empty string) into
// modifyToken when the mapped object doesn't already carry one.
func applyModifyTokenFallback(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	if _, present := m["modifyToken"]; present {
		return m
	}
	id, _ := m["id"].(string)
	m["modifyToken"] = id
	return m
}
