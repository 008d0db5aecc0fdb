package natstest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern, subject string
		want             bool
	}{
		{"phoenix.session.login", "phoenix.session.login", true},
		{"phoenix.session.login", "phoenix.session.logout", false},
		{"phoenix.session.*", "phoenix.session.login", true},
		{"phoenix.session.*", "phoenix.session.login.extra", false},
		{"phoenix.session.>", "phoenix.session.login", true},
		{"phoenix.session.>", "phoenix.session.login.extra", true},
		{"phoenix.session.>", "phoenix.session", false},
		{"phoenix.>", "studio.session.login", false},
		{"phoenix.session", "phoenix.session.login", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.pattern, tt.subject), "%s ~ %s", tt.pattern, tt.subject)
	}
}

func TestServer_CloseIsIdempotent(t *testing.T) {
	srv := NewServer(t)
	srv.Close()
	srv.Close()
	assert.Zero(t, srv.Subscriptions())
	assert.Empty(t, srv.Published())
}
