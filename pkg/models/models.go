// Package models defines the domain entities shared across the gateway:
// connections, connection model definitions, schemas, secrets, and the
// per-request CRUD envelopes the dispatch pipeline threads through.
package models

import (
	"encoding/json"
	"time"
)

// ConnectionType enumerates the kinds of upstream a Connection addresses.
type ConnectionType string

const (
	ConnectionTypeAPI           ConnectionType = "api"
	ConnectionTypeDatabaseSQL   ConnectionType = "databaseSql"
	ConnectionTypeDatabaseNoSQL ConnectionType = "databaseNoSql"
)

// RecordMetadata is the common audit envelope for stored entities.
type RecordMetadata struct {
	CreatedAt int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`
	Active    bool  `json:"active" bson:"active"`
}

// Throughput caps per-connection outbound rate (informational; enforcement
// lives outside the dispatch engine per the Non-goals).
type Throughput struct {
	Limit int    `json:"limit" bson:"limit"`
	Key   string `json:"key" bson:"key"`
}

// Connection is a tenant's configured link to a platform.
type Connection struct {
	ID               string                 `json:"id" bson:"_id"`
	Key              string                 `json:"key" bson:"key"`
	Platform         string                 `json:"platform" bson:"platform"`
	PlatformVersion  string                 `json:"platformVersion" bson:"platformVersion"`
	Type             ConnectionType         `json:"type" bson:"type"`
	Environment      string                 `json:"environment" bson:"environment"`
	Ownership        Ownership              `json:"ownership" bson:"ownership"`
	SecretsServiceID string                 `json:"secretsServiceId" bson:"secretsServiceId"`
	Throughput       Throughput             `json:"throughput" bson:"throughput"`
	Settings         map[string]interface{} `json:"settings,omitempty" bson:"settings,omitempty"`
	RecordMetadata   RecordMetadata         `json:"recordMetadata" bson:"recordMetadata"`
}

// Ownership identifies the tenant that owns a record.
type Ownership struct {
	ID             string `json:"id" bson:"id"`
	ClientID       string `json:"clientId,omitempty" bson:"clientId,omitempty"`
	OrganizationID string `json:"organizationId,omitempty" bson:"organizationId,omitempty"`
}

// ConnectionDefinition describes a platform integration authored out-of-band.
type ConnectionDefinition struct {
	ID                string                 `json:"id" bson:"_id"`
	Platform          string                 `json:"platform" bson:"platform"`
	Description       string                 `json:"description,omitempty" bson:"description,omitempty"`
	Type              ConnectionType         `json:"type" bson:"type"`
	Settings          map[string]interface{} `json:"settings,omitempty" bson:"settings,omitempty"`
	TestConnection    string                 `json:"testConnection,omitempty" bson:"testConnection,omitempty"`
	TestDelayInMillis int64                  `json:"testDelayInMillis" bson:"testDelayInMillis"`
	RecordMetadata    RecordMetadata         `json:"recordMetadata" bson:"recordMetadata"`
}

// CrudAction enumerates the canonical operations a CMD performs.
type CrudAction string

const (
	ActionGetMany  CrudAction = "getMany"
	ActionGetOne   CrudAction = "getOne"
	ActionCreate   CrudAction = "create"
	ActionUpdate   CrudAction = "update"
	ActionUpsert   CrudAction = "upsert"
	ActionDelete   CrudAction = "delete"
	ActionGetCount CrudAction = "getCount"
	ActionCustom   CrudAction = "custom"
)

// AuthMethodKind enumerates the upstream authentication schemes.
type AuthMethodKind string

const (
	AuthNone        AuthMethodKind = "none"
	AuthBearer      AuthMethodKind = "bearer"
	AuthAPIKey      AuthMethodKind = "apiKey"
	AuthQueryParam  AuthMethodKind = "queryParam"
	AuthBasic       AuthMethodKind = "basicAuth"
	AuthOAuthLegacy AuthMethodKind = "oauthLegacy"
	AuthOAuth2      AuthMethodKind = "oauth"
)

// OAuthLegacyHashAlgorithm enumerates OAuth1.0a signature methods.
type OAuthLegacyHashAlgorithm string

const (
	HmacSha1   OAuthLegacyHashAlgorithm = "HMAC-SHA1"
	HmacSha256 OAuthLegacyHashAlgorithm = "HMAC-SHA256"
	HmacSha512 OAuthLegacyHashAlgorithm = "HMAC-SHA512"
	PlainText  OAuthLegacyHashAlgorithm = "PLAINTEXT"
)

// AuthMethod is a tagged union over the supported auth schemes.
type AuthMethod struct {
	Kind AuthMethodKind `json:"kind" bson:"kind"`

	// Bearer
	Value string `json:"value,omitempty" bson:"value,omitempty"`

	// ApiKey / QueryParam
	Key string `json:"key,omitempty" bson:"key,omitempty"`

	// BasicAuth
	Username string `json:"username,omitempty" bson:"username,omitempty"`
	Password string `json:"password,omitempty" bson:"password,omitempty"`

	// OAuthLegacy
	HashAlgorithm OAuthLegacyHashAlgorithm `json:"hashAlgorithm,omitempty" bson:"hashAlgorithm,omitempty"`
	Realm         *string                  `json:"realm,omitempty" bson:"realm,omitempty"`
}

// PathsConfig holds the JSONPath strings that locate request/response
// payloads within the wire representation.
type PathsConfig struct {
	RequestObject  string `json:"requestObject,omitempty" bson:"requestObject,omitempty"`
	ResponseObject string `json:"responseObject,omitempty" bson:"responseObject,omitempty"`
	ResponseCursor string `json:"responseCursor,omitempty" bson:"responseCursor,omitempty"`
}

// ApiModelConfig is the per-CMD recipe for calling the upstream API.
type ApiModelConfig struct {
	BaseURL     string            `json:"baseUrl" bson:"baseUrl"`
	Path        string            `json:"path" bson:"path"`
	AuthMethod  AuthMethod        `json:"authMethod" bson:"authMethod"`
	Headers     map[string]string `json:"headers,omitempty" bson:"headers,omitempty"`
	QueryParams map[string]string `json:"queryParams,omitempty" bson:"queryParams,omitempty"`
	Paths       *PathsConfig      `json:"paths,omitempty" bson:"paths,omitempty"`
}

// Mapping is the bidirectional script pair attached to a CMD or CMS.
type Mapping struct {
	CommonModelName string `json:"commonModelName" bson:"commonModelName"`
	FromCommonModel string `json:"fromCommonModel,omitempty" bson:"fromCommonModel,omitempty"`
	ToCommonModel   string `json:"toCommonModel,omitempty" bson:"toCommonModel,omitempty"`
}

// ConnectionModelDefinition (CMD) is the per-(platform,action) call recipe.
type ConnectionModelDefinition struct {
	ID             string         `json:"id" bson:"_id"`
	Platform       string         `json:"platform" bson:"platform"`
	Action         string         `json:"action" bson:"action"` // HTTP method
	ActionName     CrudAction     `json:"actionName" bson:"actionName"`
	PlatformInfo   ApiModelConfig `json:"platformInfo" bson:"platformInfo"`
	Mapping        *Mapping       `json:"mapping,omitempty" bson:"mapping,omitempty"`
	Supported      bool           `json:"supported" bson:"supported"`
	IsDefaultCrud  bool           `json:"isDefaultCrudMapping,omitempty" bson:"isDefaultCrudMapping,omitempty"`
	RecordMetadata RecordMetadata `json:"recordMetadata" bson:"recordMetadata"`
}

// ConnectionModelSchema (CMS) is the per-(platform,common-model) field mapping.
type ConnectionModelSchema struct {
	ID             string         `json:"id" bson:"_id"`
	Platform       string         `json:"platform" bson:"platform"`
	Mapping        Mapping        `json:"mapping" bson:"mapping"`
	RecordMetadata RecordMetadata `json:"recordMetadata" bson:"recordMetadata"`
}

// Secret is the opaque, per-connection credential blob. Its shape depends
// on the auth scheme of the CMD it's used with.
type Secret struct {
	ID    string          `json:"id" bson:"_id"`
	Value json.RawMessage `json:"value" bson:"value"`
}

// OAuthSecret is the OAuth2.0 secret shape.
type OAuthSecret struct {
	TokenType    string `json:"tokenType,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// OAuthLegacySecret is the OAuth1.0a secret shape.
type OAuthLegacySecret struct {
	ConsumerKey       string `json:"consumerKey"`
	ConsumerSecret    string `json:"consumerSecret"`
	AccessTokenID     string `json:"accessTokenId"`
	AccessTokenSecret string `json:"accessTokenSecret"`
}

// EventAccess is the inbound API-key record resolved from a request header.
type EventAccess struct {
	ID          string     `json:"id" bson:"_id"`
	AccessKey   string     `json:"accessKey" bson:"accessKey"`
	Environment string     `json:"environment" bson:"environment"`
	Ownership   Ownership  `json:"ownership" bson:"ownership"`
	Throughput  Throughput `json:"throughput" bson:"throughput"`
}

// Destination is the per-request routing key: either a unified
// (platform, common-model, action) triple, or an opaque passthrough route.
type Destination struct {
	Platform      string
	ConnectionKey string
	Action        DestinationAction
}

// DestinationAction is a tagged union: Unified or Passthrough.
type DestinationAction struct {
	IsPassthrough bool

	// Unified fields
	Name        string
	ActionName  CrudAction
	ID          string // action-id, e.g. the entity id for getOne/update/delete
	Passthrough bool   // whether the caller additionally wants the raw body

	// Passthrough fields
	Method string
	Path   string
}

// RequestCrud is the mutable per-request envelope threaded through the
// request transform pipeline.
type RequestCrud struct {
	Headers     map[string][]string `json:"headers,omitempty"`
	QueryParams map[string]string   `json:"queryParams,omitempty"`
	PathParams  map[string]string   `json:"pathParams,omitempty"`
	Body        interface{}         `json:"body,omitempty"`
}

// Clone returns a deep-enough copy for pipeline stages that must not
// mutate the caller's original RequestCrud.
func (r RequestCrud) Clone() RequestCrud {
	out := RequestCrud{
		Headers:     make(map[string][]string, len(r.Headers)),
		QueryParams: make(map[string]string, len(r.QueryParams)),
		PathParams:  make(map[string]string, len(r.PathParams)),
		Body:        r.Body,
	}
	for k, v := range r.Headers {
		cp := make([]string, len(v))
		copy(cp, v)
		out.Headers[k] = cp
	}
	for k, v := range r.QueryParams {
		out.QueryParams[k] = v
	}
	for k, v := range r.PathParams {
		out.PathParams[k] = v
	}
	return out
}

// ResponseCrud carries paging metadata produced by mapToCrudRequest.
type ResponseCrud struct {
	Pagination map[string]interface{} `json:"pagination,omitempty"`
}

// UnifiedMetadata accumulates through the dispatch and is serialized as
// the envelope's "meta" field.
type UnifiedMetadata struct {
	TimestampMs                int64  `json:"timestamp"`
	TransactionKey             string `json:"transactionKey"`
	LatencyMs                  int64  `json:"latency"`
	Platform                   string `json:"platform"`
	PlatformVersion            string `json:"platformVersion"`
	ConnectionKey              string `json:"connectionKey"`
	CommonModel                string `json:"commonModel"`
	CommonModelVersion         string `json:"commonModelVersion"`
	Action                     string `json:"action"`
	Host                       string `json:"host,omitempty"`
	Hash                       string `json:"hash"`
	PlatformRateLimitRemaining int    `json:"platformRateLimitRemaining"`
	RateLimitRemaining         int    `json:"rateLimitRemaining"`

	// UpstreamStatus is the raw upstream HTTP status on a successful
	// dispatch; never serialized into the envelope (the HTTP response
	// itself is coerced to 200), but surfaced via the
	// x-integrationos-statuscode response header.
	UpstreamStatus int `json:"-"`
}

// Envelope is the canonical response body shape (§6 of SPEC_FULL.md).
type Envelope struct {
	Unified     interface{}            `json:"unified,omitempty"`
	Passthrough interface{}            `json:"passthrough,omitempty"`
	Pagination  map[string]interface{} `json:"pagination,omitempty"`
	Meta        UnifiedMetadata        `json:"meta"`
}

// NowMs returns the current time in Unix milliseconds.
func NowMs() int64 {
	return time.Now().UnixMilli()
}
