// Package dispatch orchestrates one request end to end: resolve
// dependencies, run the request transform, call upstream, run the
// response transform, and assemble the envelope — or, for passthrough
// routes, resolve a CMD by id or path match and call upstream raw.
package dispatch

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/unigate/gateway/internal/gwerrors"
	"github.com/unigate/gateway/internal/httpcaller"
	"github.com/unigate/gateway/internal/reqpipeline"
	"github.com/unigate/gateway/internal/resolver"
	"github.com/unigate/gateway/internal/resppipeline"
	"github.com/unigate/gateway/internal/routematch"
	"github.com/unigate/gateway/pkg/models"
)

// Dispatcher wires together the resolver, the request/response
// transform pipelines, and the HTTP caller into the two dispatch
// paths the gateway exposes: unified and passthrough.
type Dispatcher struct {
	resolver *resolver.Resolver
	reqPipe  *reqpipeline.Pipeline
	respPipe *resppipeline.Pipeline
	caller   *httpcaller.Caller
}

// New builds a Dispatcher from its four collaborators.
func New(r *resolver.Resolver, reqPipe *reqpipeline.Pipeline, respPipe *resppipeline.Pipeline, caller *httpcaller.Caller) *Dispatcher {
	return &Dispatcher{resolver: r, reqPipe: reqPipe, respPipe: respPipe, caller: caller}
}

// UpstreamError carries an upstream non-2xx response that must be
// passed back to the caller verbatim, not wrapped in the gateway's own
// error shape.
type UpstreamError struct {
	Status  int
	Body    []byte
	Headers http.Header
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream responded %d", e.Status)
}

// DispatchUnified runs the full unified pipeline for a (platform,
// common-model, action) request against conn. On an upstream non-2xx
// response it returns an *UpstreamError (via errors.As) rather than an
// envelope; callers should pass that status/body straight through.
func (d *Dispatcher) DispatchUnified(ctx context.Context, conn *models.Connection, commonModelName string, action models.DestinationAction, host string, req models.RequestCrud) (*models.Envelope, error) {
	meta := initMetadata(conn, commonModelName, action, host)

	resolved, err := d.resolver.Resolve(ctx, conn, commonModelName, action.ActionName)
	if err != nil {
		return nil, err
	}

	txn, err := d.reqPipe.Run(ctx, resolved.CMD, resolved.CMS, resolved.Secret, action, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, body, err := d.caller.Call(ctx, conn, txn.CMD, txn.Secret, txn.Request)
	meta.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}

	respResult, err := d.respPipe.Run(ctx, resolved.CMD, action, resp, body)
	if err != nil {
		return nil, err
	}
	if respResult.IsError {
		return nil, &UpstreamError{Status: respResult.Status, Body: respResult.RawBody, Headers: respResult.Headers}
	}

	meta.Hash = fingerprint(respResult.RawBody, action.ActionName, commonModelName)
	meta.UpstreamStatus = respResult.Status

	return &models.Envelope{
		Unified:     respResult.Unified,
		Passthrough: respResult.Passthrough,
		Pagination:  respResult.Pagination,
		Meta:        meta,
	}, nil
}

// DispatchPassthrough resolves the CMD for a passthrough request —
// either directly by id, or by matching method+path against the
// platform's registered routes — then calls upstream and returns the
// raw response unmapped.
func (d *Dispatcher) DispatchPassthrough(ctx context.Context, conn *models.Connection, action models.DestinationAction) (*http.Response, []byte, error) {
	cmd, err := d.resolveCMDForPassthrough(ctx, conn.Platform, action)
	if err != nil {
		return nil, nil, err
	}

	secret, err := d.resolver.ResolveSecret(ctx, conn)
	if err != nil {
		return nil, nil, err
	}

	templatedPath, ok := routematch.Template(cmd.PlatformInfo.Path, action.Path)
	if !ok {
		return nil, nil, gwerrors.NewInvalidArgument("path does not match the resolved route's segment count", "passthrough_path")
	}
	templated := *cmd
	templated.PlatformInfo.Path = templatedPath

	return d.caller.Call(ctx, conn, &templated, secret, models.RequestCrud{})
}

func (d *Dispatcher) resolveCMDForPassthrough(ctx context.Context, platform string, action models.DestinationAction) (*models.ConnectionModelDefinition, error) {
	if action.ID != "" {
		return d.resolver.ResolveCMDByID(ctx, action.ID)
	}

	candidates, err := d.resolver.ListCMDs(ctx, platform)
	if err != nil {
		return nil, err
	}
	var paths []string
	byPath := make(map[string]*models.ConnectionModelDefinition)
	for i := range candidates {
		c := &candidates[i]
		if c.Action != action.Method {
			continue
		}
		paths = append(paths, c.PlatformInfo.Path)
		byPath[c.PlatformInfo.Path] = c
	}

	template, _, ok := routematch.Match(action.Path, paths)
	if !ok {
		return nil, gwerrors.NewKeyNotFound("no route matches "+action.Method+" "+action.Path, "connection_model_definition")
	}
	// Ambiguity: more than one candidate with the fewest wildcards and
	// the same segment shape is impossible by construction of Match's
	// tie-break, but two *distinct* templates can still tie on
	// wildcard count while representing genuinely different routes.
	if ambiguous(action.Path, paths, template) {
		return nil, gwerrors.NewInvalidArgument("path matches more than one route", "passthrough_path")
	}
	return byPath[template], nil
}

// ambiguous reports whether more than one candidate in paths matches
// concrete with the same (minimal) wildcard count as template.
func ambiguous(concrete string, paths []string, template string) bool {
	_, winnerParams, _ := routematch.Match(concrete, []string{template})
	winnerWildcards := len(winnerParams)
	count := 0
	for _, p := range paths {
		_, params, ok := routematch.Match(concrete, []string{p})
		if ok && len(params) == winnerWildcards {
			count++
		}
	}
	return count > 1
}

func initMetadata(conn *models.Connection, commonModelName string, action models.DestinationAction, host string) models.UnifiedMetadata {
	return models.UnifiedMetadata{
		TimestampMs:        models.NowMs(),
		TransactionKey:     transactionKey(),
		Platform:           conn.Platform,
		PlatformVersion:    conn.PlatformVersion,
		ConnectionKey:      conn.Key,
		CommonModel:        commonModelName,
		CommonModelVersion: "v1",
		Action:             string(action.ActionName),
		Host:               host,
	}
}

func transactionKey() string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("txn_%d", models.NowMs())
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return fmt.Sprintf("txn_%d_%s", models.NowMs(), out)
}

func fingerprint(body []byte, actionName models.CrudAction, commonModelName string) string {
	h := sha256.New()
	h.Write(body)
	h.Write([]byte(actionName))
	h.Write([]byte(commonModelName))
	return hex.EncodeToString(h.Sum(nil))
}
