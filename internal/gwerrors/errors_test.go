package gwerrors_test

import (
	"testing"

	"github.com/unigate/gateway/internal/gwerrors"
)

func TestCodesAreStable(t *testing.T) {
	cases := []struct {
		err  *gwerrors.Error
		code int
	}{
		{gwerrors.NewUnknownError("boom", ""), 1000},
		{gwerrors.NewUniqueFieldViolation("dup", ""), 1001},
		{gwerrors.NewTimeout("slow", ""), 1002},
		{gwerrors.NewDeserializeError("bad json", ""), 1012},
		{gwerrors.NewBadRequest("missing field", ""), 2000},
		{gwerrors.NewNotFound("no such connection", ""), 2005},
		{gwerrors.NewUnprocessableEntity("nope", ""), 2011},
	}
	for _, c := range cases {
		if got := c.err.Code(); got != c.code {
			t.Errorf("Code() for %v = %d, want %d", c.err.Kind, got, c.code)
		}
	}
}

func TestKeyFormat(t *testing.T) {
	err := gwerrors.NewInvalidArgument("bad platform", "")
	if got, want := err.Key(), "err::internal::invalid_argument"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}

	withSubtype := gwerrors.NewInvalidArgument("bad platform", "platform")
	if got, want := withSubtype.Key(), "err::internal::invalid_argument::platform"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}

	app := gwerrors.NewConflict("already exists", "")
	if got, want := app.Key(), "err::application::conflict"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestStatusCoercion(t *testing.T) {
	cases := []struct {
		err    *gwerrors.Error
		status int
	}{
		{gwerrors.NewUniqueFieldViolation("dup", ""), 409},
		{gwerrors.NewKeyNotFound("missing", ""), 404},
		{gwerrors.NewTimeout("slow", ""), 504},
		{gwerrors.NewBadRequest("bad", ""), 400},
		{gwerrors.NewTooManyRequests("slow down", ""), 429},
		{gwerrors.NewServiceUnavailable("down", ""), 503},
	}
	for _, c := range cases {
		if got := c.err.Status(); got != c.status {
			t.Errorf("Status() for %v = %d, want %d", c.err.Kind, got, c.status)
		}
	}
}

func TestAsApplication_PreservesMessageForDocumentedKinds(t *testing.T) {
	cases := []struct {
		in       *gwerrors.Error
		wantKind gwerrors.Kind
		wantMsg  string
	}{
		{gwerrors.NewUniqueFieldViolation("connection key already exists", ""), gwerrors.Conflict, "connection key already exists"},
		{gwerrors.NewKeyNotFound("secret not found", ""), gwerrors.NotFound, "secret not found"},
		{gwerrors.NewInvalidArgument("bad platform name", ""), gwerrors.BadRequest, "bad platform name"},
		{gwerrors.NewSerializeError("could not marshal response", ""), gwerrors.BadRequest, "could not marshal response"},
		{gwerrors.NewDeserializeError("could not unmarshal request", ""), gwerrors.BadRequest, "could not unmarshal request"},
	}
	for _, c := range cases {
		got := c.in.AsApplication()
		if got.Domain != gwerrors.DomainApplication {
			t.Errorf("AsApplication() Domain = %v, want Application", got.Domain)
		}
		if got.Kind != c.wantKind {
			t.Errorf("AsApplication() Kind = %v, want %v", got.Kind, c.wantKind)
		}
		if got.Message != c.wantMsg {
			t.Errorf("AsApplication() Message = %q, want %q", got.Message, c.wantMsg)
		}
	}
}

func TestAsApplication_CollapsesRemainingInternalKinds(t *testing.T) {
	in := gwerrors.NewScriptError("transform threw at line 12", "contactMapper")
	got := in.AsApplication()
	if got.Kind != gwerrors.InternalServerError {
		t.Errorf("AsApplication() Kind = %v, want InternalServerError", got.Kind)
	}
	if got.Message == in.Message {
		t.Error("AsApplication() should not leak the internal message")
	}
	if got.Subtype != "" {
		t.Errorf("AsApplication() Subtype = %q, want empty", got.Subtype)
	}
}

func TestAsApplication_IsNoopForApplicationErrors(t *testing.T) {
	in := gwerrors.NewForbidden("not your connection", "")
	got := in.AsApplication()
	if got != in {
		t.Error("AsApplication() on an Application error should return the same error")
	}
}

func TestFromStatus(t *testing.T) {
	if got := gwerrors.FromStatus(404, "not found upstream", ""); got.Kind != gwerrors.NotFound {
		t.Errorf("FromStatus(404) Kind = %v, want NotFound", got.Kind)
	}
	if got := gwerrors.FromStatus(418, "teapot", ""); got.Kind != gwerrors.BadRequest {
		t.Errorf("FromStatus(418) Kind = %v, want BadRequest", got.Kind)
	}
	if got := gwerrors.FromStatus(599, "mystery", ""); got.Domain != gwerrors.DomainInternal {
		t.Errorf("FromStatus(599) Domain = %v, want Internal", got.Domain)
	}
}

func TestJSONShape(t *testing.T) {
	err := gwerrors.NewNotFound("connection not found", "")
	body, marshalErr := err.JSON()
	if marshalErr != nil {
		t.Fatalf("JSON() error = %v", marshalErr)
	}
	for _, field := range []string{`"type"`, `"code"`, `"status"`, `"key"`, `"message"`} {
		if !contains(body, field) {
			t.Errorf("JSON() missing field %s: %s", field, body)
		}
	}
}

func contains(b []byte, s string) bool {
	return len(b) > 0 && (string(b) != "" && indexOf(string(b), s) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
