// Package reqpipeline runs the unified-path request transform: schema
// mapping of the inbound body, CRUD shaping against the connection
// model definition's own script, and the Handlebars render that bakes
// per-tenant secrets and path params into the outbound CMD.
package reqpipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mailgun/raymond/v2"

	"github.com/unigate/gateway/internal/gwerrors"
	"github.com/unigate/gateway/internal/sandbox"
	"github.com/unigate/gateway/pkg/models"
)

// Pipeline runs the six-step request transform described for the
// unified dispatch path.
type Pipeline struct {
	sandbox         *sandbox.Sandbox
	sandboxCapacity int
}

// New creates a Pipeline over sb, using sandboxCapacity to derive
// per-CMD script namespaces (0 disables script-namespace caching).
func New(sb *sandbox.Sandbox, sandboxCapacity int) *Pipeline {
	return &Pipeline{sandbox: sb, sandboxCapacity: sandboxCapacity}
}

// Result bundles everything the HTTP caller needs after the transform:
// the rendered CMD (with Handlebars placeholders resolved), the secret
// extended with path params, and the shaped request.
type Result struct {
	CMD     *models.ConnectionModelDefinition
	Secret  *models.Secret
	Request models.RequestCrud
}

// Run executes the request transform pipeline for one dispatch.
func (p *Pipeline) Run(ctx context.Context, cmd *models.ConnectionModelDefinition, cms *models.ConnectionModelSchema, secret *models.Secret, action models.DestinationAction, req models.RequestCrud) (*Result, error) {
	secretFields, err := secretToMap(secret)
	if err != nil {
		return nil, err
	}

	// 1. Action-id injection.
	if action.ID != "" {
		secretFields["id"] = action.ID
	}

	// 2. Body via CMS.
	cmsMappedBody := req.Body
	if cms != nil && cms.Mapping.FromCommonModel != "" && req.Body != nil {
		ns := sandbox.Namespace(cms.ID, p.sandboxCapacity)
		out, err := p.sandbox.Run(ctx, ns, cms.Mapping.FromCommonModel, "mapFromCommonModel", req.Body)
		if err != nil {
			return nil, err
		}
		cmsMappedBody = dropNulls(out)
	}

	shaped := req.Clone()

	// 3. CRUD via CMD: prepare before scripting.
	if cmd.Mapping != nil && cmd.Mapping.FromCommonModel != "" {
		preparePassthroughForward(&shaped)
		preparePassthroughHeaders(&shaped)
		if action.ID != "" {
			if shaped.PathParams == nil {
				shaped.PathParams = make(map[string]string)
			}
			shaped.PathParams["id"] = action.ID
		}

		ns := sandbox.Namespace(cmd.ID, p.sandboxCapacity)
		out, err := p.sandbox.Run(ctx, ns, cmd.Mapping.FromCommonModel, "mapFromCrudRequest", shaped)
		if err != nil {
			return nil, err
		}
		mapped, err := toRequestCrud(out)
		if err != nil {
			return nil, err
		}
		shaped = mapped
	}

	// 4. Unconditionally overwrite the script's body with the CMS-mapped body.
	shaped.Body = cmsMappedBody

	// 5. Extend secret with path params.
	for k, v := range shaped.PathParams {
		secretFields[k] = v
	}

	// 6. Re-wrap body under the request object's dotted path, if it
	// addresses into the body.
	if cmd.PlatformInfo.Paths != nil && strings.HasPrefix(cmd.PlatformInfo.Paths.RequestObject, "$.body.") {
		rest := strings.TrimPrefix(cmd.PlatformInfo.Paths.RequestObject, "$.body.")
		shaped.Body = wrapBody(shaped.Body, rest)
	}

	renderedSecret, err := mapToSecret(secret.ID, secretFields)
	if err != nil {
		return nil, err
	}

	renderedCMD, err := renderCMD(cmd, secretFields)
	if err != nil {
		return nil, err
	}

	return &Result{CMD: renderedCMD, Secret: renderedSecret, Request: shaped}, nil
}

// renderCMD serializes cmd, renders it as a Handlebars template with
// secretFields as context, and re-parses the result. This is how
// per-tenant secrets and path params get baked into URLs and headers
// without ever mutating the cached CMD itself.
func renderCMD(cmd *models.ConnectionModelDefinition, secretFields map[string]interface{}) (*models.ConnectionModelDefinition, error) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return nil, gwerrors.NewSerializeError(err.Error(), "cmd")
	}
	rendered, err := raymond.Render(string(raw), map[string]interface{}{"secret": secretFields})
	if err != nil {
		return nil, gwerrors.NewInvalidArgument(err.Error(), "cmd_template")
	}
	var out models.ConnectionModelDefinition
	if err := json.Unmarshal([]byte(rendered), &out); err != nil {
		return nil, gwerrors.NewInvalidArgument(err.Error(), "cmd_template")
	}
	return &out, nil
}

func secretToMap(secret *models.Secret) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if secret == nil || len(secret.Value) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(secret.Value, &fields); err != nil {
		return nil, gwerrors.NewDeserializeError(err.Error(), "secret")
	}
	return fields, nil
}

func mapToSecret(id string, fields map[string]interface{}) (*models.Secret, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, gwerrors.NewSerializeError(err.Error(), "secret")
	}
	return &models.Secret{ID: id, Value: raw}, nil
}

func toRequestCrud(v interface{}) (models.RequestCrud, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return models.RequestCrud{}, gwerrors.NewSerializeError(err.Error(), "crud_request")
	}
	var out models.RequestCrud
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.RequestCrud{}, gwerrors.NewDeserializeError(err.Error(), "crud_request")
	}
	return out, nil
}

// preparePassthroughForward strips the passthroughForward query param
// and re-injects its "k=v&k=v" encoded pairs as ordinary query params.
func preparePassthroughForward(req *models.RequestCrud) {
	if req.QueryParams == nil {
		return
	}
	raw, ok := req.QueryParams["passthroughForward"]
	if !ok {
		return
	}
	delete(req.QueryParams, "passthroughForward")
	for k, v := range parsePairs(raw, "&", "=") {
		req.QueryParams[k] = v
	}
}

// preparePassthroughHeaders strips the x-pica-passthrough-headers
// header and re-injects its "k=v;k=v" encoded pairs as ordinary headers.
func preparePassthroughHeaders(req *models.RequestCrud) {
	if req.Headers == nil {
		return
	}
	vals, ok := req.Headers["x-pica-passthrough-headers"]
	if !ok || len(vals) == 0 {
		return
	}
	delete(req.Headers, "x-pica-passthrough-headers")
	for k, v := range parsePairs(vals[0], ";", "=") {
		req.Headers[k] = []string{v}
	}
}

func parsePairs(s, sep, kv string) map[string]string {
	out := make(map[string]string)
	if s == "" {
		return out
	}
	for _, part := range strings.Split(s, sep) {
		if part == "" {
			continue
		}
		kvParts := strings.SplitN(part, kv, 2)
		if len(kvParts) != 2 {
			continue
		}
		out[kvParts[0]] = kvParts[1]
	}
	return out
}

// dropNulls removes map keys whose value is nil, recursively.
func dropNulls(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = dropNulls(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = dropNulls(val)
		}
		return out
	default:
		return v
	}
}

// wrapBody nests body under the dotted key path rest, e.g. "user.profile"
// produces {"user": {"profile": body}}.
func wrapBody(body interface{}, rest string) interface{} {
	if rest == "" {
		return body
	}
	keys := strings.Split(rest, ".")
	wrapped := body
	for i := len(keys) - 1; i >= 0; i-- {
		wrapped = map[string]interface{}{keys[i]: wrapped}
	}
	return wrapped
}
