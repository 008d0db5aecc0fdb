package messaging

import (
	"strings"
	"time"
)

// Session lifecycle events. Subjects follow {prefix}.session.{event}.
const (
	EventLogin     = "login"
	EventLogout    = "logout"
	EventRefreshed = "refreshed"
	EventValidated = "validated"
	EventExpired   = "expired"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "phoenix"

// HeaderRequestID carries the originating request ID on published events.
const HeaderRequestID = "X-Request-ID"

// SessionEvent is the payload published for every session lifecycle event.
type SessionEvent struct {
	Event     string    `json:"event"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionSubject returns the subject for event under prefix.
// Example: phoenix.session.login
func SessionSubject(prefix, event string) string {
	return normalizePrefix(prefix) + ".session." + event
}

// SessionWildcard matches every session event under prefix.
func SessionWildcard(prefix string) string {
	return normalizePrefix(prefix) + ".session.>"
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, ". ")
	if prefix == "" {
		return DefaultSubjectPrefix
	}
	return prefix
}
