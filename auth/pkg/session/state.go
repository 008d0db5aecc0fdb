package session

import (
	"time"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

// State is the session lifecycle state.
type State int

const (
	Uninitialized State = iota
	Validating
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Validating:
		return "validating"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the session. User is non-nil exactly when
// IsAuthenticated is true.
type Snapshot struct {
	User            *models.UserProfile
	IsAuthenticated bool
	Loading         bool
	State           State
	ExpiresAt       time.Time
	// Err is the failure that produced the current state, if any.
	Err error

	tokenRole string
}

// Role returns the canonical role of the signed-in user, preferring the role
// claim of the current access token over the profile.
func (s Snapshot) Role() tokens.Role {
	if !s.IsAuthenticated {
		return tokens.RoleAny
	}
	if s.tokenRole != "" {
		return tokens.Canonicalize(s.tokenRole)
	}
	if s.User == nil {
		return tokens.RoleAny
	}
	return tokens.Canonicalize(s.User.Role)
}

func (s Snapshot) clone() Snapshot {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Redirect tells a view where to navigate after an operation.
type Redirect int

const (
	RedirectNone Redirect = iota
	RedirectLogin
	RedirectAccessDenied
	RedirectAdminHome
	RedirectDefaultHome
)

func (r Redirect) String() string {
	switch r {
	case RedirectLogin:
		return "login"
	case RedirectAccessDenied:
		return "access-denied"
	case RedirectAdminHome:
		return "admin-home"
	case RedirectDefaultHome:
		return "home"
	default:
		return "none"
	}
}

// Result pairs the session state after an operation with the navigation it implies.
type Result struct {
	Session  Snapshot
	Redirect Redirect
}

// Decision is the outcome of Guard.
type Decision int

const (
	Allow Decision = iota
	RedirectToLogin
	RedirectToAccessDenied
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "login"
	case RedirectToAccessDenied:
		return "access-denied"
	default:
		return "unknown"
	}
}

// Access describes what a view requires of the session.
type Access struct {
	Required bool
	Role     tokens.Role
}

var (
	Public = Access{}
	Member = Access{Required: true}
	Admin  = Access{Required: true, Role: tokens.RoleAdmin}
)

// RequireAccess returns an Access demanding an authenticated user with role.
func RequireAccess(role tokens.Role) Access {
	return Access{Required: true, Role: role}
}

func (a Access) required() bool {
	return a.Required || a.Role != tokens.RoleAny
}

func landingFor(role string) Redirect {
	if tokens.IsAdmin(role) {
		return RedirectAdminHome
	}
	return RedirectDefaultHome
}
