package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/store"
	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestGuard_Decisions(t *testing.T) {
	tests := []struct {
		name      string
		tokenRole string
		required  tokens.Role
		want      Decision
	}{
		{name: "alias satisfies admin", tokenRole: "ROLE_ADMIN", required: tokens.RoleAdmin, want: Allow},
		{name: "plain admin", tokenRole: "ADMIN", required: tokens.RoleAdmin, want: Allow},
		{name: "user denied admin", tokenRole: "USER", required: tokens.RoleAdmin, want: RedirectToAccessDenied},
		{name: "user allowed any", tokenRole: "USER", required: tokens.RoleAny, want: Allow},
		{name: "alias user", tokenRole: "role_user", required: tokens.RoleUser, want: Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := member(tt.tokenRole)
			m, st := newTestManager(t, &fakeAuth{validateUser: user})
			seed(t, st, store.Credential{AccessToken: mustToken(t, user.Email, tt.tokenRole, time.Hour)})

			assert.Equal(t, tt.want, m.Guard(context.Background(), tt.required))
		})
	}
}

func TestGuard_NoSessionRedirectsToLogin(t *testing.T) {
	auth := &fakeAuth{}
	m, _ := newTestManager(t, auth)

	assert.Equal(t, RedirectToLogin, m.Guard(context.Background(), tokens.RoleAny))
	assert.Equal(t, RedirectToLogin, m.Guard(context.Background(), tokens.RoleAdmin))
	assert.Empty(t, auth.callLog())
}

func TestGuard_TokenRoleWinsOverProfileRole(t *testing.T) {
	user := member("USER")
	m, st := newTestManager(t, &fakeAuth{validateUser: user})
	seed(t, st, store.Credential{AccessToken: mustToken(t, user.Email, "ROLE_ADMIN", time.Hour)})

	assert.Equal(t, Allow, m.Guard(context.Background(), tokens.RoleAdmin))
}

func TestGuard_ReusesRecentValidation(t *testing.T) {
	clock := newFakeClock()
	user := member("USER")
	auth := &fakeAuth{validateUser: user}
	m, st := newTestManager(t, auth, func(o *Options) {
		o.Clock = clock.Now
		o.GuardInterval = 30 * time.Second
	})
	seed(t, st, store.Credential{AccessToken: mustToken(t, user.Email, "USER", time.Hour)})

	ctx := context.Background()
	require.Equal(t, Allow, m.Guard(ctx, tokens.RoleUser))
	require.Equal(t, Allow, m.Guard(ctx, tokens.RoleUser))
	clock.Advance(10 * time.Second)
	require.Equal(t, Allow, m.Guard(ctx, tokens.RoleUser))
	assert.Equal(t, 1, auth.count("validate"))

	clock.Advance(30 * time.Second)
	require.Equal(t, Allow, m.Guard(ctx, tokens.RoleUser))
	assert.Equal(t, 2, auth.count("validate"))
}

func TestGuard_RevalidatesInsideRenewalWindow(t *testing.T) {
	clock := newFakeClock()
	user := member("USER")
	auth := &fakeAuth{
		validateUser: user,
		refreshGrant: &models.Grant{Token: mustToken(t, user.Email, "USER", time.Hour)},
	}
	m, st := newTestManager(t, auth, func(o *Options) {
		o.Clock = clock.Now
		o.GuardInterval = time.Hour
		o.RenewalThreshold = 5 * time.Minute
	})
	seed(t, st, store.Credential{AccessToken: mustToken(t, user.Email, "USER", 10*time.Minute), RefreshToken: "r1"})

	ctx := context.Background()
	require.Equal(t, Allow, m.Guard(ctx, tokens.RoleAny))
	assert.Zero(t, auth.count("refresh"))

	clock.Advance(6 * time.Minute)
	require.Equal(t, Allow, m.Guard(ctx, tokens.RoleAny))
	assert.Equal(t, 1, auth.count("refresh"))
	assert.Equal(t, 2, auth.count("validate"))
}

func TestGuard_AfterLogoutRedirectsToLogin(t *testing.T) {
	user := member("ADMIN")
	auth := &fakeAuth{validateUser: user}
	m, st := newTestManager(t, auth)
	seed(t, st, store.Credential{AccessToken: mustToken(t, user.Email, "ADMIN", time.Hour)})

	require.Equal(t, Allow, m.Guard(context.Background(), tokens.RoleAdmin))
	m.Logout(context.Background())
	assert.Equal(t, RedirectToLogin, m.Guard(context.Background(), tokens.RoleAdmin))
}

func TestRequireRole(t *testing.T) {
	protected := func(m *Manager) http.Handler {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(u.Email))
		})
		return RequireRole(m, tokens.RoleAdmin, "/login", "/denied")(next)
	}

	t.Run("anonymous", func(t *testing.T) {
		m, _ := newTestManager(t, &fakeAuth{})
		rec := httptest.NewRecorder()
		protected(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("under-privileged", func(t *testing.T) {
		user := member("USER")
		m, st := newTestManager(t, &fakeAuth{validateUser: user})
		seed(t, st, store.Credential{AccessToken: mustToken(t, user.Email, "USER", time.Hour)})

		rec := httptest.NewRecorder()
		protected(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/denied", rec.Header().Get("Location"))
	})

	t.Run("admin", func(t *testing.T) {
		user := member("ROLE_ADMIN")
		m, st := newTestManager(t, &fakeAuth{validateUser: user})
		seed(t, st, store.Credential{AccessToken: mustToken(t, user.Email, "ROLE_ADMIN", time.Hour)})

		rec := httptest.NewRecorder()
		protected(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, user.Email, rec.Body.String())
	})
}

func TestGuard_DecisionAndUserComeFromOneSnapshot(t *testing.T) {
	user := member("ROLE_ADMIN")
	m, st := newTestManager(t, &fakeAuth{validateUser: user})
	seed(t, st, store.Credential{AccessToken: mustToken(t, user.Email, "ROLE_ADMIN", time.Hour)})

	decision, snap := m.guard(context.Background(), tokens.RoleAdmin)
	m.Logout(context.Background())

	require.Equal(t, Allow, decision)
	require.NotNil(t, snap.User)
	assert.Equal(t, user.Email, snap.User.Email)
	assert.False(t, m.Snapshot().IsAuthenticated)
}

func TestRequireRole_HandlerSeesGuardedUserAfterLogout(t *testing.T) {
	user := member("ROLE_ADMIN")
	m, st := newTestManager(t, &fakeAuth{validateUser: user})
	seed(t, st, store.Credential{AccessToken: mustToken(t, user.Email, "ROLE_ADMIN", time.Hour)})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Logout(r.Context())
		u, ok := UserFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(u.Email))
	})

	rec := httptest.NewRecorder()
	RequireRole(m, tokens.RoleAdmin, "/login", "/denied")(next).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.Email, rec.Body.String())
}

func TestGuard_WrongRoleSkipsBackend(t *testing.T) {
	user := member("USER")
	auth := &fakeAuth{validateUser: user}
	m, st := newTestManager(t, auth)
	seed(t, st, store.Credential{AccessToken: mustToken(t, user.Email, "USER", time.Hour)})

	assert.Equal(t, RedirectToAccessDenied, m.Guard(context.Background(), tokens.RoleAdmin))
	assert.Zero(t, auth.count("validate"))
	assert.False(t, stored(t, st).IsZero())
}

func TestUserFromContext_Empty(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)
}
