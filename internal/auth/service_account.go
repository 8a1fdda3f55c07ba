package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/unigate/gateway/pkg/contracts"
	"github.com/unigate/gateway/pkg/models"
)

// InternalServiceProvider validates HMAC-signed service tokens used by
// trusted internal callers — the k8s provisioning job reporting readiness,
// CI pipelines seeding connection definitions — rather than tenant clients.
//
// Token format: base64(JSON payload) + "." + base64(HMAC-SHA256 signature).
type InternalServiceProvider struct {
	secret  []byte
	enabled bool
}

type serviceTokenPayload struct {
	Subject     string `json:"sub"`
	Environment string `json:"environment,omitempty"`
	Exp         int64  `json:"exp"`
}

// NewInternalServiceProvider creates a service-token provider. An empty
// secret disables the provider (Authenticate always returns nil, nil).
func NewInternalServiceProvider(secret string) *InternalServiceProvider {
	if secret == "" {
		return &InternalServiceProvider{enabled: false}
	}
	return &InternalServiceProvider{secret: []byte(secret), enabled: true}
}

func (p *InternalServiceProvider) Name() string { return "internal_service" }

// Authenticate validates the service token from the X-Service-Token header.
func (p *InternalServiceProvider) Authenticate(_ context.Context, r *http.Request) (*contracts.Identity, error) {
	if !p.enabled {
		return nil, nil
	}
	token := r.Header.Get("X-Service-Token")
	if token == "" {
		return nil, nil
	}

	payload, err := p.validateToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid service token: %w", err)
	}

	return &contracts.Identity{
		EventAccess: models.EventAccess{
			Environment: payload.Environment,
			Ownership:   models.Ownership{ClientID: payload.Subject},
		},
	}, nil
}

func (p *InternalServiceProvider) validateToken(token string) (*serviceTokenPayload, error) {
	payloadB64, sigB64, ok := splitToken(token)
	if !ok {
		return nil, fmt.Errorf("malformed token: expected payload.signature")
	}

	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(payloadB64))
	expectedSig := mac.Sum(nil)

	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if !hmac.Equal(sig, expectedSig) {
		return nil, fmt.Errorf("signature mismatch")
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, fmt.Errorf("invalid payload encoding: %w", err)
	}

	var payload serviceTokenPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("invalid payload JSON: %w", err)
	}
	if payload.Exp > 0 && time.Now().Unix() > payload.Exp {
		return nil, fmt.Errorf("token expired")
	}
	if payload.Subject == "" {
		return nil, fmt.Errorf("missing subject")
	}
	return &payload, nil
}

func splitToken(token string) (string, string, bool) {
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			return token[:i], token[i+1:], true
		}
	}
	return "", "", false
}

// GenerateServiceToken creates a signed service token. Used by the
// provisioning job's completion callback and by test/CLI tooling — not
// called by the server itself.
func GenerateServiceToken(secret []byte, subject, environment string, ttl time.Duration) (string, error) {
	payload := serviceTokenPayload{
		Subject:     subject,
		Environment: environment,
		Exp:         time.Now().Add(ttl).Unix(),
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadBytes)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payloadB64))
	sig := mac.Sum(nil)
	sigB64 := base64.RawURLEncoding.EncodeToString(sig)

	return payloadB64 + "." + sigB64, nil
}
