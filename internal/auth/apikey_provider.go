package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/unigate/gateway/internal/store"
	"github.com/unigate/gateway/pkg/contracts"
)

// APIKeyProvider resolves the inbound access key (the gateway's EventAccess
// key, conventionally presented via the x-pica-secret header or an
// Authorization: Bearer value) to the caller's tenant scope.
type APIKeyProvider struct {
	store      store.Store
	headerName string
}

// NewAPIKeyProvider creates an API key auth provider backed by s. headerName
// is the primary header the access key is read from (config.AuthConfig.APIKeyHeader).
func NewAPIKeyProvider(s store.Store, headerName string) *APIKeyProvider {
	if headerName == "" {
		headerName = "x-pica-secret"
	}
	return &APIKeyProvider{store: s, headerName: headerName}
}

func (p *APIKeyProvider) Name() string { return "apikey" }

// Authenticate resolves the access key in the request to an EventAccess
// record. Returns (nil, nil) if no key is present (let the next provider
// try); (nil, error) if a key is present but doesn't resolve.
func (p *APIKeyProvider) Authenticate(ctx context.Context, r *http.Request) (*contracts.Identity, error) {
	key := p.extractKey(r)
	if key == "" {
		return nil, nil
	}

	ea, err := p.store.GetEventAccessByKey(ctx, key)
	if err != nil {
		var nf *store.ErrNotFound
		if errors.As(err, &nf) {
			return nil, errors.New("invalid access key")
		}
		return nil, err
	}

	return &contracts.Identity{EventAccess: *ea}, nil
}

func (p *APIKeyProvider) extractKey(r *http.Request) string {
	if v := r.Header.Get(p.headerName); v != "" {
		return v
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
