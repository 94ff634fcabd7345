// Package common defines shared constants and sentinel errors used across
// server and client layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorBadRequest   = errors.New("bad request")
	ErrorInactive     = errors.New("account not activated")

	// Token errors. Kept distinct so callers can tell an expired session
	// from a forged or garbled one.
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrMalformedToken = errors.New("malformed token")

	// Recovery errors.
	ErrOTPNotVerified = errors.New("otp not verified")
	ErrOTPNotFound    = fmt.Errorf("otp %w", ErrorNotFound)
)

// UpstreamError reports a failure of a third-party provider (email, storage).
// Message is safe to show to clients, Meta carries the provider detail.
type UpstreamError struct {
	Message string
	Meta    string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Meta == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Meta)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NewUpstreamError wraps err as a provider failure with a client-facing message.
func NewUpstreamError(message string, err error) *UpstreamError {
	ue := &UpstreamError{Message: message, Err: err}
	if err != nil {
		ue.Meta = err.Error()
	}
	return ue
}
