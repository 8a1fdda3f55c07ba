package sandbox_test

import (
	"context"
	"testing"

	"github.com/unigate/gateway/internal/sandbox"
)

func TestRun_MapsInputToOutput(t *testing.T) {
	sb := sandbox.New()
	script := `function mapToCommonModel(body) { return {id: body.id, email: body.email}; }`

	out, err := sb.Run(context.Background(), "ns-1", script, "mapToCommonModel", map[string]interface{}{
		"id": "cus_1", "email": "a@b", "internal": "drop me",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	m, ok := out.(map[string]interface{})
	if !ok {
		t.Fatalf("Run() result type = %T, want map[string]interface{}", out)
	}
	if m["id"] != "cus_1" || m["email"] != "a@b" {
		t.Errorf("Run() result = %v, want id/email from input", m)
	}
	if _, ok := m["internal"]; ok {
		t.Error("Run() result should not carry fields the script didn't return")
	}
}

func TestRun_CompileError(t *testing.T) {
	sb := sandbox.New()
	if _, err := sb.Run(context.Background(), "ns-bad", "this is not valid js {{{", "f"); err == nil {
		t.Fatal("Run() with invalid script should error")
	}
}

func TestRun_MissingFunction(t *testing.T) {
	sb := sandbox.New()
	if _, err := sb.Run(context.Background(), "ns-2", `var x = 1;`, "notAFunction"); err == nil {
		t.Fatal("Run() calling an undefined function should error")
	}
}

func TestRun_ReusesCompiledNamespace(t *testing.T) {
	sb := sandbox.New()
	script := `var calls = 0; function f() { calls++; return calls; }`

	first, err := sb.Run(context.Background(), "ns-reuse", script, "f")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second, err := sb.Run(context.Background(), "ns-reuse", script, "f")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if first == second {
		t.Error("second Run() should observe state mutated by the first (same compiled runtime)")
	}
}

func TestNamespace_ZeroCapacityIsAlwaysUnique(t *testing.T) {
	a := sandbox.Namespace("cmd-1", 0)
	b := sandbox.Namespace("cmd-1", 0)
	if a == b {
		t.Error("Namespace() with maxCapacity=0 should never repeat")
	}
}

func TestNamespace_FoldsSeparators(t *testing.T) {
	got := sandbox.Namespace("stripe:getOne-v1", 100)
	if got != "stripe_getOne_v1" {
		t.Errorf("Namespace() = %q, want %q", got, "stripe_getOne_v1")
	}
}
