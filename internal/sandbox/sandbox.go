// Package sandbox runs tenant-authored JavaScript mapping functions in
// an isolated goja VM per namespace, the gateway's only embedded
// scripting surface. Input and output cross the boundary as JSON so a
// script never holds a live reference into Go state across calls.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/unigate/gateway/internal/gwerrors"
)

// Sandbox compiles and caches one goja program per namespace and
// evaluates named functions against it. Callers derive the namespace
// from a CMD id (see Namespace); a cached program is reused only while
// its script source is unchanged, so a hot-swapped script is recompiled
// instead of colliding with the one it replaced.
type Sandbox struct {
	mu      sync.Mutex
	runtime map[string]*namespaceRuntime
}

// namespaceRuntime pairs a compiled program with the lock that
// serializes invocations against it: a goja.Runtime is not safe for
// concurrent Run calls, and two requests can share a namespace.
type namespaceRuntime struct {
	mu     sync.Mutex
	rt     *goja.Runtime
	script string
}

// New creates an empty sandbox.
func New() *Sandbox {
	return &Sandbox{runtime: make(map[string]*namespaceRuntime)}
}

// Namespace derives a per-connection-model-definition script namespace.
// maxCapacity == 0 means caching is disabled gateway-wide, in which case
// every call gets a fresh, always-miss namespace so no compiled program
// survives past the single invocation that created it.
func Namespace(cmdID string, maxCapacity int) string {
	if maxCapacity == 0 {
		return uuid.NewString()
	}
	ns := strings.ReplaceAll(cmdID, ":", "_")
	return strings.ReplaceAll(ns, "-", "_")
}

func (s *Sandbox) runtimeFor(namespace, script string) (*namespaceRuntime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nr, ok := s.runtime[namespace]; ok && nr.script == script {
		return nr, nil
	}
	rt := goja.New()
	if _, err := rt.RunString(script); err != nil {
		return nil, gwerrors.NewScriptError(err.Error(), "compile")
	}
	nr := &namespaceRuntime{rt: rt, script: script}
	s.runtime[namespace] = nr
	return nr, nil
}

// Evict drops the compiled program for namespace, forcing recompilation
// on the next call (used when a script version is known to have
// changed out from under a still-warm namespace).
func (s *Sandbox) Evict(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runtime, namespace)
}

// Run compiles (or reuses) namespace's program and calls fnName with
// args marshaled to JSON and unmarshaled into goja values; the return
// value is marshaled back out through JSON into result.
func (s *Sandbox) Run(ctx context.Context, namespace, script, fnName string, args ...interface{}) (interface{}, error) {
	nr, err := s.runtimeFor(namespace, script)
	if err != nil {
		return nil, err
	}
	nr.mu.Lock()
	defer nr.mu.Unlock()
	rt := nr.rt

	fnVal := rt.Get(fnName)
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, gwerrors.NewScriptError(fmt.Sprintf("%s is not a function", fnName), "lookup")
	}

	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, gwerrors.NewSerializeError(err.Error(), "script_arg")
		}
		var v interface{}
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, gwerrors.NewDeserializeError(err.Error(), "script_arg")
		}
		jsArgs[i] = rt.ToValue(v)
	}

	done := make(chan struct{})
	var out goja.Value
	var runErr error
	go func() {
		out, runErr = fn(goja.Undefined(), jsArgs...)
		close(done)
	}()

	select {
	case <-ctx.Done():
		rt.Interrupt("context canceled")
		<-done
		return nil, gwerrors.NewTimeout(ctx.Err().Error(), fnName)
	case <-done:
	}

	if runErr != nil {
		return nil, gwerrors.NewScriptError(runErr.Error(), fnName)
	}

	exported := out.Export()
	b, err := json.Marshal(exported)
	if err != nil {
		return nil, gwerrors.NewSerializeError(err.Error(), "script_result")
	}
	var result interface{}
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, gwerrors.NewDeserializeError(err.Error(), "script_result")
	}
	return result, nil
}
