package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across packages.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldEmail     = "email"
	FieldRole      = "role"
	FieldState     = "state"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldProfile   = "profile"
	FieldBackend   = "backend"
	FieldAttempt   = "attempt"
)

// Component returns a slog attribute naming the emitting component.
func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

// Email returns a slog attribute for the account email.
func Email(email string) slog.Attr {
	return slog.String(FieldEmail, email)
}

// Role returns a slog attribute for a role name.
func Role(role string) slog.Attr {
	return slog.String(FieldRole, role)
}

// State returns a slog attribute for a session state.
func State(state string) slog.Attr {
	return slog.String(FieldState, state)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Profile returns a slog attribute for the credential profile.
func Profile(name string) slog.Attr {
	return slog.String(FieldProfile, name)
}

// Backend returns a slog attribute for the credential store backend.
func Backend(name string) slog.Attr {
	return slog.String(FieldBackend, name)
}

// Attempt returns a slog attribute for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}
