package session

import (
	"context"
	"net/http"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

type contextKey string

const userKey contextKey = "session-user"

// RequireRole guards an HTTP handler with m. Unauthenticated requests are
// redirected to loginPath and under-privileged ones to deniedPath, both with
// 303 See Other. Allowed requests carry the user profile in their context.
func RequireRole(m *Manager, role tokens.Role, loginPath, deniedPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, snap := m.guard(r.Context(), role)
			switch decision {
			case RedirectToLogin:
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			case RedirectToAccessDenied:
				http.Redirect(w, r, deniedPath, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, snap.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the profile stored by RequireRole.
func UserFromContext(ctx context.Context) (*models.UserProfile, bool) {
	u, ok := ctx.Value(userKey).(*models.UserProfile)
	return u, ok && u != nil
}
