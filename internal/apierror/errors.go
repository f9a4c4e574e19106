// Package apierror defines the error taxonomy shared by the credential
// store, auth manager, router, executor and HTTP surface. Every error kind
// carries a stable Type discriminator so handlers can produce a consistent
// error.type/message body without leaking internals (file paths, stack
// traces) to callers.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Type is the stable discriminator carried in error responses.
type Type string

const (
	TypeConfig       Type = "config_error"
	TypeStorage      Type = "storage_error"
	TypeAuthSession  Type = "auth_session_error"
	TypeProviderAuth Type = "provider_auth_error"
	TypeRetryable    Type = "upstream_retryable"
	TypeQuota        Type = "upstream_quota"
	TypeClient       Type = "upstream_client"
	TypeTranslation  Type = "translation_error"
	TypePassthrough  Type = "passthrough_unavailable"
)

// httpStatus maps each Type to the HTTP status it should surface as, absent
// a more specific status captured on the error (e.g. a passed-through 4xx).
var httpStatus = map[Type]int{
	TypeConfig:       http.StatusInternalServerError,
	TypeStorage:      http.StatusInternalServerError,
	TypeAuthSession:  http.StatusBadRequest,
	TypeProviderAuth: http.StatusBadRequest,
	TypeRetryable:    http.StatusBadGateway,
	TypeQuota:        http.StatusTooManyRequests,
	TypeClient:       http.StatusBadRequest,
	TypeTranslation:  http.StatusBadGateway,
	TypePassthrough:  http.StatusServiceUnavailable,
}

// Error is the concrete error value carried across component boundaries.
type Error struct {
	Kind    Type
	Message string
	Status  int
	Retry   bool
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus returns the HTTP status to surface for this error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if s, ok := httpStatus[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func newf(kind Type, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func Config(cause error, format string, args ...any) *Error {
	return newf(TypeConfig, cause, format, args...)
}

func Storage(cause error, format string, args ...any) *Error {
	return newf(TypeStorage, cause, format, args...)
}

func AuthSession(format string, args ...any) *Error {
	return newf(TypeAuthSession, nil, format, args...)
}

func ProviderAuth(cause error, format string, args ...any) *Error {
	return newf(TypeProviderAuth, cause, format, args...)
}

func Retryable(cause error, status int, format string, args ...any) *Error {
	e := newf(TypeRetryable, cause, format, args...)
	e.Retry = true
	e.Status = status
	return e
}

func Quota(cause error, reason string) *Error {
	return &Error{Kind: TypeQuota, Message: reason, cause: cause, Retry: true}
}

func Client(status int, format string, args ...any) *Error {
	e := newf(TypeClient, nil, format, args...)
	e.Status = status
	return e
}

func Translation(cause error, format string, args ...any) *Error {
	return newf(TypeTranslation, cause, format, args...)
}

func Passthrough(hint string) *Error {
	return &Error{Kind: TypePassthrough, Message: hint}
}

// As is a thin wrapper over errors.As for *Error, used by handlers that need
// to inspect the classified kind of an arbitrary error chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
