package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/phoenixfitness/phoenix-stack/common/httputil"
)

// Failure kinds. Every error returned by the Manager matches exactly one of
// these with errors.Is.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrSessionExpired    = errors.New("session expired")
	ErrAccessDenied      = errors.New("access denied")
	ErrNoRefreshToken    = errors.New("no refresh token")
	ErrNetworkFailure    = errors.New("network failure")
	ErrValidationFailure = errors.New("validation failure")
)

var kinds = []error{
	ErrInvalidCredential,
	ErrSessionExpired,
	ErrAccessDenied,
	ErrNoRefreshToken,
	ErrNetworkFailure,
	ErrValidationFailure,
}

// Error is a classified session failure. Message is safe to show to a user.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Kind.Error() + ": " + e.Message
	case e.Err != nil:
		return e.Kind.Error() + ": " + e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the failure kind of err, or nil if err is not a session error.
func KindOf(err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// isTransient reports whether err means the backend could not be reached or
// answered with a server fault, as opposed to rejecting the credential.
func isTransient(err error) bool {
	if errors.Is(err, httputil.ErrNetwork) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, httputil.ErrUnexpectedShape) {
		return true
	}
	var apiErr *httputil.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError ||
			apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// backendMessage extracts the server's explanation from err, falling back to fallback.
func backendMessage(err error, fallback string) string {
	var apiErr *httputil.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
