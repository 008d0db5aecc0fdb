package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want string
	}{
		{name: "component", attr: Component("client"), key: FieldComponent, want: "client"},
		{name: "email", attr: Email("a@b.co"), key: FieldEmail, want: "a@b.co"},
		{name: "role", attr: Role("ADMIN"), key: FieldRole, want: "ADMIN"},
		{name: "state", attr: State("authenticated"), key: FieldState, want: "authenticated"},
		{name: "method", attr: Method("GET"), key: FieldMethod, want: "GET"},
		{name: "path", attr: Path("/auth/login"), key: FieldPath, want: "/auth/login"},
		{name: "status", attr: Status(401), key: FieldStatus, want: "401"},
		{name: "duration", attr: Duration(1500 * time.Millisecond), key: FieldDuration, want: "1500"},
		{name: "error", attr: Error(errors.New("boom")), key: FieldError, want: "boom"},
		{name: "nil error", attr: Error(nil), key: FieldError, want: ""},
		{name: "profile", attr: Profile("work"), key: FieldProfile, want: "work"},
		{name: "backend", attr: Backend("bolt"), key: FieldBackend, want: "bolt"},
		{name: "attempt", attr: Attempt(2), key: FieldAttempt, want: "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.key {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.key)
			}
			if got := tt.attr.Value.String(); got != tt.want {
				t.Errorf("value = %q, want %q", got, tt.want)
			}
		})
	}
}
