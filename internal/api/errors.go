package api

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned when a protected endpoint answers 401 or when
// no session token is available. Callers must clear the session and return
// the user to the login view.
var ErrUnauthorized = errors.New("unauthorized")

// ConnectionError indicates a transport failure: no HTTP response was
// received.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection error: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RequestFailedError is a non-success response that is neither 401 nor a
// payload rejection.
type RequestFailedError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RequestFailedError) Error() string {
	return e.Message
}

// ValidationFailedError is a server-side rejection of a mutation payload.
// Message is surfaced verbatim.
type ValidationFailedError struct {
	StatusCode int
	Message    string
}

func (e *ValidationFailedError) Error() string {
	return e.Message
}

// AuthError is a rejected login attempt.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Default messages used when the server does not provide one.
const (
	msgLoginFailed   = "login failed"
	msgListFailed    = "failed to load products"
	msgSaveFailed    = "failed to save product"
	msgDeleteFailed  = "failed to delete product"
	msgProbeRejected = "token rejected"
)
