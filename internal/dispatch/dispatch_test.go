package dispatch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unigate/gateway/internal/cache"
	"github.com/unigate/gateway/internal/dispatch"
	"github.com/unigate/gateway/internal/httpcaller"
	"github.com/unigate/gateway/internal/reqpipeline"
	"github.com/unigate/gateway/internal/resolver"
	"github.com/unigate/gateway/internal/resppipeline"
	"github.com/unigate/gateway/internal/sandbox"
	"github.com/unigate/gateway/internal/store"
	"github.com/unigate/gateway/pkg/models"
)

func newDispatcher(t *testing.T, production bool) (*dispatch.Dispatcher, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	caches := cache.NewCaches(100, time.Minute)
	t.Cleanup(caches.Close)

	sb := sandbox.New()
	return dispatch.New(
		resolver.New(s, caches),
		reqpipeline.New(sb, 100),
		resppipeline.New(sb, 100, production),
		httpcaller.New(5*time.Second),
	), s
}

func TestDispatchUnified_GetOneHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.Header.Get("Authorization"), "Bearer sk_test_abc"; got != want {
			t.Errorf("Authorization = %q, want %q", got, want)
		}
		if got, want := r.URL.Path, "/customers/cus_1"; got != want {
			t.Errorf("path = %q, want %q", got, want)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"cus_1","email":"a@b"}`))
	}))
	defer srv.Close()

	d, s := newDispatcher(t, true)
	ctx := context.Background()

	if err := s.UpsertCMD(ctx, &models.ConnectionModelDefinition{
		ID: "cmd-1", Platform: "stripe", ActionName: models.ActionGetOne,
		PlatformInfo: models.ApiModelConfig{
			BaseURL:    srv.URL,
			Path:       "customers/{{secret.id}}",
			AuthMethod: models.AuthMethod{Kind: models.AuthBearer, Value: "{{secret.accessToken}}"},
			Paths:      &models.PathsConfig{ResponseObject: "$.body"},
		},
		Mapping: &models.Mapping{
			ToCommonModel: `function mapToCommonModel(body) { return {id: body.id, email: body.email}; }`,
		},
	}); err != nil {
		t.Fatalf("UpsertCMD() error = %v", err)
	}
	if err := s.UpsertCMS(ctx, &models.ConnectionModelSchema{
		ID: "cms-1", Platform: "stripe",
		Mapping: models.Mapping{
			CommonModelName: "Customer",
		},
	}); err != nil {
		t.Fatalf("UpsertCMS() error = %v", err)
	}
	if err := s.PutSecret(ctx, &models.Secret{ID: "secret-1", Value: []byte(`{"accessToken":"sk_test_abc","tokenType":"Bearer"}`)}); err != nil {
		t.Fatalf("PutSecret() error = %v", err)
	}

	conn := &models.Connection{Platform: "stripe", SecretsServiceID: "secret-1", Key: "live::stripe::default::abc"}

	env, err := d.DispatchUnified(ctx, conn, "Customer", models.DestinationAction{ActionName: models.ActionGetOne, ID: "cus_1"}, "", models.RequestCrud{})
	if err != nil {
		t.Fatalf("DispatchUnified() error = %v", err)
	}
	unified, ok := env.Unified.(map[string]interface{})
	if !ok {
		t.Fatalf("Unified type = %T", env.Unified)
	}
	if unified["id"] != "cus_1" || unified["email"] != "a@b" {
		t.Errorf("Unified = %v, want stripe customer fields", unified)
	}
	if unified["modifyToken"] != "cus_1" {
		t.Errorf("Unified modifyToken = %v, want cus_1", unified["modifyToken"])
	}
	if env.Meta.CommonModel != "Customer" {
		t.Errorf("Meta.CommonModel = %q, want Customer", env.Meta.CommonModel)
	}
	if env.Meta.LatencyMs < 0 {
		t.Errorf("Meta.LatencyMs = %d, want >= 0", env.Meta.LatencyMs)
	}
}

func TestDispatchUnified_UpstreamErrorPassesThroughVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"no such customer"}`))
	}))
	defer srv.Close()

	d, s := newDispatcher(t, true)
	ctx := context.Background()

	if err := s.UpsertCMD(ctx, &models.ConnectionModelDefinition{
		ID: "cmd-2", Platform: "acme", ActionName: models.ActionGetOne,
		PlatformInfo: models.ApiModelConfig{BaseURL: srv.URL, Path: "widgets/1"},
	}); err != nil {
		t.Fatalf("UpsertCMD() error = %v", err)
	}
	if err := s.UpsertCMS(ctx, &models.ConnectionModelSchema{ID: "cms-2", Platform: "acme", Mapping: models.Mapping{CommonModelName: "Widget"}}); err != nil {
		t.Fatalf("UpsertCMS() error = %v", err)
	}
	if err := s.PutSecret(ctx, &models.Secret{ID: "secret-2", Value: []byte(`{}`)}); err != nil {
		t.Fatalf("PutSecret() error = %v", err)
	}
	conn := &models.Connection{Platform: "acme", SecretsServiceID: "secret-2"}

	_, err := d.DispatchUnified(ctx, conn, "Widget", models.DestinationAction{ActionName: models.ActionGetOne}, "", models.RequestCrud{})
	if err == nil {
		t.Fatal("DispatchUnified() should surface the upstream error")
	}
	var upErr *dispatch.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("error = %v, want *dispatch.UpstreamError", err)
	}
	if upErr.Status != http.StatusNotFound {
		t.Errorf("UpstreamError.Status = %d, want 404", upErr.Status)
	}
	if string(upErr.Body) != `{"error":"no such customer"}` {
		t.Errorf("UpstreamError.Body = %s, want verbatim upstream body", upErr.Body)
	}
}

func TestDispatchPassthrough_MatchesRouteAndCallsRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.URL.Path, "/users/u_123"; got != want {
			t.Errorf("path = %q, want %q", got, want)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"u_123"}`))
	}))
	defer srv.Close()

	d, s := newDispatcher(t, true)
	ctx := context.Background()

	if err := s.UpsertCMD(ctx, &models.ConnectionModelDefinition{
		ID: "cmd-passthrough", Platform: "github", Action: http.MethodGet,
		PlatformInfo: models.ApiModelConfig{BaseURL: srv.URL, Path: "users/:id"},
	}); err != nil {
		t.Fatalf("UpsertCMD() error = %v", err)
	}
	if err := s.PutSecret(ctx, &models.Secret{ID: "secret-3", Value: []byte(`{}`)}); err != nil {
		t.Fatalf("PutSecret() error = %v", err)
	}
	conn := &models.Connection{Platform: "github", SecretsServiceID: "secret-3"}

	resp, body, err := d.DispatchPassthrough(ctx, conn, models.DestinationAction{
		IsPassthrough: true, Method: http.MethodGet, Path: "/users/u_123",
	})
	if err != nil {
		t.Fatalf("DispatchPassthrough() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(body) != `{"id":"u_123"}` {
		t.Errorf("body = %s, want raw upstream body", body)
	}
}

func TestDispatchPassthrough_AmbiguousRouteFails(t *testing.T) {
	d, s := newDispatcher(t, true)
	ctx := context.Background()

	if err := s.UpsertCMD(ctx, &models.ConnectionModelDefinition{
		ID: "cmd-a", Platform: "acme", Action: http.MethodGet,
		PlatformInfo: models.ApiModelConfig{Path: "users/:id"},
	}); err != nil {
		t.Fatalf("UpsertCMD() error = %v", err)
	}
	if err := s.UpsertCMD(ctx, &models.ConnectionModelDefinition{
		ID: "cmd-b", Platform: "acme", Action: http.MethodGet,
		PlatformInfo: models.ApiModelConfig{Path: "users/:name"},
	}); err != nil {
		t.Fatalf("UpsertCMD() error = %v", err)
	}
	if err := s.PutSecret(ctx, &models.Secret{ID: "secret-4", Value: []byte(`{}`)}); err != nil {
		t.Fatalf("PutSecret() error = %v", err)
	}
	conn := &models.Connection{Platform: "acme", SecretsServiceID: "secret-4"}

	_, _, err := d.DispatchPassthrough(ctx, conn, models.DestinationAction{
		IsPassthrough: true, Method: http.MethodGet, Path: "/users/me",
	})
	if err == nil {
		t.Fatal("DispatchPassthrough() should fail on ambiguous route match")
	}
}
