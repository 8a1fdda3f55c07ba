// Package gwerrors is the gateway's two-tier error taxonomy: Internal
// errors (the system's own faults — scripts, IO, serialization) and
// Application errors (the caller's fault, or a condition the caller
// should be able to act on — bad request, conflict, not found). Every
// error that reaches an HTTP handler is a *Error so the response body
// and status code are always derived the same way.
package gwerrors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Domain distinguishes the two top-level error tiers.
type Domain int

const (
	DomainInternal Domain = iota
	DomainApplication
)

func (d Domain) String() string {
	if d == DomainInternal {
		return "internal"
	}
	return "application"
}

// Kind identifies a specific error variant within its Domain. Values
// match the PascalCase variant names of the taxonomy this package
// generalizes, so the wire-level "type" field stays stable across
// server implementations.
type Kind string

const (
	UnknownError          Kind = "UnknownError"
	UniqueFieldViolation   Kind = "UniqueFieldViolation"
	Timeout                Kind = "Timeout"
	ConnectionError        Kind = "ConnectionError"
	KeyNotFound            Kind = "KeyNotFound"
	InvalidArgument        Kind = "InvalidArgument"
	IOErr                  Kind = "IOErr"
	EncryptionError        Kind = "EncryptionError"
	DecryptionError        Kind = "DecryptionError"
	ConfigurationError     Kind = "ConfigurationError"
	ScriptError            Kind = "ScriptError"
	SerializeError         Kind = "SerializeError"
	DeserializeError       Kind = "DeserializeError"

	BadRequest          Kind = "BadRequest"
	Conflict            Kind = "Conflict"
	Forbidden           Kind = "Forbidden"
	InternalServerError Kind = "InternalServerError"
	MethodNotAllowed    Kind = "MethodNotAllowed"
	NotFound            Kind = "NotFound"
	NotImplemented      Kind = "NotImplemented"
	FailedDependency    Kind = "FailedDependency"
	ServiceUnavailable  Kind = "ServiceUnavailable"
	TooManyRequests     Kind = "TooManyRequests"
	Unauthorized        Kind = "Unauthorized"
	UnprocessableEntity Kind = "UnprocessableEntity"
)

// codes maps each Kind to its stable numeric error code: 1000-series
// for Internal, 2000-series for Application.
var codes = map[Kind]int{
	UnknownError:        1000,
	UniqueFieldViolation: 1001,
	Timeout:              1002,
	ConnectionError:      1003,
	KeyNotFound:          1004,
	InvalidArgument:      1005,
	IOErr:                1006,
	EncryptionError:      1007,
	DecryptionError:      1008,
	ConfigurationError:   1009,
	ScriptError:          1010,
	SerializeError:       1011,
	DeserializeError:     1012,

	BadRequest:          2000,
	Conflict:            2001,
	Forbidden:           2002,
	InternalServerError: 2003,
	MethodNotAllowed:    2004,
	NotFound:            2005,
	NotImplemented:      2006,
	FailedDependency:    2007,
	ServiceUnavailable:  2008,
	TooManyRequests:     2009,
	Unauthorized:        2010,
	UnprocessableEntity: 2011,
}

// statuses maps each Kind to its coerced HTTP status.
var statuses = map[Kind]int{
	UniqueFieldViolation: 409,
	Timeout:              504,
	ConnectionError:      502,
	KeyNotFound:          404,
	InvalidArgument:      400,
	SerializeError:       400,
	DeserializeError:     400,
	UnknownError:         500,
	IOErr:                500,
	EncryptionError:      500,
	ConfigurationError:   500,
	ScriptError:          500,
	DecryptionError:      500,

	BadRequest:          400,
	Conflict:            409,
	Forbidden:           403,
	InternalServerError: 500,
	MethodNotAllowed:    405,
	NotFound:            404,
	NotImplemented:      501,
	FailedDependency:    424,
	ServiceUnavailable:  503,
	TooManyRequests:     429,
	Unauthorized:        401,
	UnprocessableEntity: 422,
}

// snakeKeys maps each Kind to the snake_case fragment used in its
// err::<domain>::<key>[::<subtype>] identifier.
var snakeKeys = map[Kind]string{
	UnknownError:          "unknown",
	UniqueFieldViolation:   "unique_violation",
	Timeout:                "timeout",
	ConnectionError:        "connection_error",
	KeyNotFound:            "key_not_found",
	InvalidArgument:        "invalid_argument",
	IOErr:                  "io_err",
	EncryptionError:        "encryption_error",
	DecryptionError:        "decryption_error",
	ConfigurationError:     "configuration_error",
	ScriptError:            "script_error",
	SerializeError:         "serialize_error",
	DeserializeError:       "deserialize_error",

	BadRequest:          "bad_request",
	Conflict:            "conflict",
	Forbidden:           "forbidden",
	InternalServerError: "internal_server_error",
	MethodNotAllowed:    "method_not_allowed",
	NotFound:            "not_found",
	NotImplemented:      "not_implemented",
	FailedDependency:    "failed_dependency",
	ServiceUnavailable:  "service_unavailable",
	TooManyRequests:     "too_many_requests",
	Unauthorized:        "unauthorized",
	UnprocessableEntity: "unprocessable_entity",
}

// toApplication maps an Internal Kind to the Application Kind it
// degrades to when a handler must respond at the Application tier
// (e.g. an HTTP response body that never exposes internal detail).
var toApplication = map[Kind]Kind{
	Timeout:            InternalServerError,
	ConnectionError:    InternalServerError,
	IOErr:              InternalServerError,
	EncryptionError:    InternalServerError,
	DecryptionError:    InternalServerError,
	ScriptError:        InternalServerError,
	ConfigurationError: InternalServerError,
	UnknownError:       InternalServerError,

	UniqueFieldViolation: Conflict,
	KeyNotFound:          NotFound,
	InvalidArgument:      BadRequest,
	SerializeError:       BadRequest,
	DeserializeError:     BadRequest,
}

// Error is the gateway's single error type. Every error returned from
// sandbox, httpcaller, and pipeline code is an *Error.
type Error struct {
	Domain  Domain
	Kind    Kind
	Message string
	Subtype string
	Meta    map[string]interface{}
}

func (e *Error) Error() string {
	if e.Subtype != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Subtype)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Code returns the stable numeric identifier for this error's Kind.
func (e *Error) Code() int { return codes[e.Kind] }

// Key returns the err::<domain>::<key>[::<subtype>] identifier.
func (e *Error) Key() string {
	k := fmt.Sprintf("err::%s::%s", e.Domain, snakeKeys[e.Kind])
	if e.Subtype != "" {
		k += "::" + e.Subtype
	}
	return k
}

// Status returns the HTTP status this error coerces to.
func (e *Error) Status() int { return statuses[e.Kind] }

// AsApplication degrades an Internal error to its Application
// counterpart so a handler can safely describe it to a caller without
// leaking internal detail; Application errors are returned unchanged.
func (e *Error) AsApplication() *Error {
	if e.Domain == DomainApplication {
		return e
	}
	kind, ok := toApplication[e.Kind]
	if !ok {
		kind = InternalServerError
	}
	out := &Error{Domain: DomainApplication, Kind: kind, Message: e.Message, Subtype: e.Subtype, Meta: e.Meta}
	if kind == InternalServerError {
		out.Message = "An unknown error occurred"
		out.Subtype = ""
		out.Meta = nil
	}
	return out
}

// WithMeta attaches structured context to the error, returning a copy.
func (e *Error) WithMeta(meta map[string]interface{}) *Error {
	cp := *e
	cp.Meta = meta
	return &cp
}

// JSON renders the error as the wire-level response body shape.
func (e *Error) JSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":    string(e.Kind),
		"code":    e.Code(),
		"status":  e.Status(),
		"key":     e.Key(),
		"message": e.Message,
		"meta":    e.Meta,
	})
}

func internal(kind Kind, message, subtype string) *Error {
	return &Error{Domain: DomainInternal, Kind: kind, Message: message, Subtype: subtype}
}

func application(kind Kind, message, subtype string) *Error {
	return &Error{Domain: DomainApplication, Kind: kind, Message: message, Subtype: subtype}
}

// ── Internal constructors ────────────────────────────────────

func NewUnknownError(message, subtype string) *Error      { return internal(UnknownError, message, subtype) }
func NewUniqueFieldViolation(message, subtype string) *Error {
	return internal(UniqueFieldViolation, message, subtype)
}
func NewTimeout(message, subtype string) *Error        { return internal(Timeout, message, subtype) }
func NewConnectionError(message, subtype string) *Error { return internal(ConnectionError, message, subtype) }
func NewKeyNotFound(message, subtype string) *Error     { return internal(KeyNotFound, message, subtype) }
func NewInvalidArgument(message, subtype string) *Error { return internal(InvalidArgument, message, subtype) }
func NewIOErr(message, subtype string) *Error           { return internal(IOErr, message, subtype) }
func NewEncryptionError(message, subtype string) *Error { return internal(EncryptionError, message, subtype) }
func NewDecryptionError(message, subtype string) *Error { return internal(DecryptionError, message, subtype) }
func NewConfigurationError(message, subtype string) *Error {
	return internal(ConfigurationError, message, subtype)
}
func NewScriptError(message, subtype string) *Error    { return internal(ScriptError, message, subtype) }
func NewSerializeError(message, subtype string) *Error { return internal(SerializeError, message, subtype) }
func NewDeserializeError(message, subtype string) *Error {
	return internal(DeserializeError, message, subtype)
}

// ── Application constructors ─────────────────────────────────

func NewBadRequest(message, subtype string) *Error { return application(BadRequest, message, subtype) }
func NewConflict(message, subtype string) *Error   { return application(Conflict, message, subtype) }
func NewForbidden(message, subtype string) *Error  { return application(Forbidden, message, subtype) }
func NewInternalServerError(message, subtype string) *Error {
	return application(InternalServerError, message, subtype)
}
func NewMethodNotAllowed(message, subtype string) *Error {
	return application(MethodNotAllowed, message, subtype)
}
func NewNotFound(message, subtype string) *Error { return application(NotFound, message, subtype) }
func NewNotImplemented(message, subtype string) *Error {
	return application(NotImplemented, message, subtype)
}
func NewFailedDependency(message, subtype string) *Error {
	return application(FailedDependency, message, subtype)
}
func NewServiceUnavailable(message, subtype string) *Error {
	return application(ServiceUnavailable, message, subtype)
}
func NewTooManyRequests(message, subtype string) *Error {
	return application(TooManyRequests, message, subtype)
}
func NewUnauthorized(message, subtype string) *Error { return application(Unauthorized, message, subtype) }
func NewUnprocessableEntity(message, subtype string) *Error {
	return application(UnprocessableEntity, message, subtype)
}

// FromStatus maps an HTTP status code back onto the taxonomy, used when
// wrapping an upstream platform's error response. Unrecognized 4xx
// statuses become BadRequest; unrecognized 5xx statuses become an
// Internal IOErr describing the unexpected status.
func FromStatus(status int, message, subtype string) *Error {
	switch status {
	case 400:
		return NewBadRequest(message, subtype)
	case 401:
		return NewUnauthorized(message, subtype)
	case 403:
		return NewForbidden(message, subtype)
	case 404:
		return NewNotFound(message, subtype)
	case 405:
		return NewMethodNotAllowed(message, subtype)
	case 409:
		return NewConflict(message, subtype)
	case 422:
		return NewUnprocessableEntity(message, subtype)
	case 424:
		return NewFailedDependency(message, subtype)
	case 429:
		return NewTooManyRequests(message, subtype)
	case 500:
		return NewInternalServerError(message, subtype)
	case 501:
		return NewNotImplemented(message, subtype)
	case 503:
		return NewServiceUnavailable(message, subtype)
	default:
		if status >= 400 && status < 500 {
			return NewBadRequest(message, subtype)
		}
		return NewIOErr(fmt.Sprintf("unknown error with status code: %d, message: %s", status, message), subtype)
	}
}

// As reports whether err is (or wraps) a *Error, mirroring errors.As.
func As(err error) (*Error, bool) {
	var ge *Error
	ok := errors.As(err, &ge)
	return ge, ok
}
