package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unigate/gateway/internal/auth"
	"github.com/unigate/gateway/internal/store"
	"github.com/unigate/gateway/pkg/models"
)

func TestAPIKeyProvider_AuthenticatesKnownKey(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	s.PutEventAccess(&models.EventAccess{
		ID: "ea-1", AccessKey: "sk_live_abc", Environment: "live",
		Ownership: models.Ownership{ClientID: "client-a"},
	})

	p := auth.NewAPIKeyProvider(s, "x-pica-secret")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-pica-secret", "sk_live_abc")

	identity, err := p.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if identity == nil {
		t.Fatal("Authenticate() returned nil identity for a known key")
	}
	if identity.EventAccess.Environment != "live" {
		t.Errorf("Environment = %q, want %q", identity.EventAccess.Environment, "live")
	}
}

func TestAPIKeyProvider_NoHeaderPassesThrough(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	p := auth.NewAPIKeyProvider(s, "x-pica-secret")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	identity, err := p.Authenticate(context.Background(), req)
	if err != nil || identity != nil {
		t.Fatalf("Authenticate() = %v, %v, want nil, nil", identity, err)
	}
}

func TestAPIKeyProvider_UnknownKeyRejected(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	p := auth.NewAPIKeyProvider(s, "x-pica-secret")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-pica-secret", "nope")

	if _, err := p.Authenticate(context.Background(), req); err == nil {
		t.Error("Authenticate() should reject an unknown key")
	}
}

func TestProviderChain_FirstMatchWins(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	s.PutEventAccess(&models.EventAccess{ID: "ea-1", AccessKey: "sk_live_abc", Environment: "live"})

	chain := auth.NewProviderChain()
	chain.RegisterProvider(auth.NewInternalServiceProvider("")) // disabled, always (nil, nil)
	chain.RegisterProvider(auth.NewAPIKeyProvider(s, "x-pica-secret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-pica-secret", "sk_live_abc")

	identity, err := chain.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if identity == nil {
		t.Fatal("Authenticate() should resolve via the second provider")
	}
}

func TestInternalServiceProvider_RoundTrip(t *testing.T) {
	p := auth.NewInternalServiceProvider("top-secret")
	token, err := auth.GenerateServiceToken([]byte("top-secret"), "provisioner", "live", time.Hour)
	if err != nil {
		t.Fatalf("GenerateServiceToken() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Service-Token", token)

	identity, err := p.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if identity == nil || identity.EventAccess.Environment != "live" {
		t.Fatalf("Authenticate() = %+v, want environment=live", identity)
	}
}
