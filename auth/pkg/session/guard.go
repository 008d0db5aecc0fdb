package session

import (
	"context"
	"errors"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/common/metrics"
)

// Guard decides whether a protected view may be shown to the current user.
//
// The session is re-validated when it has never been resolved, when the last
// check is older than the guard interval, or when the access token has entered
// its renewal window. Otherwise the cached state is trusted, so repeated guards
// within the interval cost nothing.
func (m *Manager) Guard(ctx context.Context, role tokens.Role) Decision {
	decision, _ := m.guard(ctx, role)
	return decision
}

// guard is Guard returning the snapshot the decision was made on.
func (m *Manager) guard(ctx context.Context, role tokens.Role) (Decision, Snapshot) {
	snap := m.Snapshot()
	decision := Allow
	if m.needsRevalidation() {
		res, err := m.Initialize(ctx, RequireAccess(role))
		snap = res.Session
		if errors.Is(err, ErrAccessDenied) {
			decision = RedirectToAccessDenied
		}
	}
	if decision == Allow {
		decision = decide(snap, role)
	}

	metrics.GuardDecisions.WithLabelValues(decision.String()).Inc()
	return decision, snap
}

func decide(snap Snapshot, role tokens.Role) Decision {
	if !snap.IsAuthenticated {
		return RedirectToLogin
	}
	if !tokens.Matches(string(snap.Role()), role) {
		return RedirectToAccessDenied
	}
	return Allow
}

func (m *Manager) needsRevalidation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	switch {
	case m.snap.State == Uninitialized:
		return true
	case m.checkedAt.IsZero() || now.Sub(m.checkedAt) >= m.opts.GuardInterval:
		return true
	case m.snap.IsAuthenticated && m.claims != nil && m.claims.NeedsRenewal(m.opts.RenewalThreshold, now):
		return true
	default:
		return false
	}
}
