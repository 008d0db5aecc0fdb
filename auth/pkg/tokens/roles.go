package tokens

import "strings"

// Role is a canonical role name.
type Role string

const (
	RoleAny   Role = ""
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

const rolePrefix = "ROLE_"

// Canonicalize upper-cases a role name and strips the "ROLE_" alias prefix.
func Canonicalize(role string) Role {
	r := strings.ToUpper(strings.TrimSpace(role))
	return Role(strings.TrimPrefix(r, rolePrefix))
}

// Matches reports whether actual satisfies required. RoleAny accepts any role,
// including an empty one.
func Matches(actual string, required Role) bool {
	want := Canonicalize(string(required))
	if want == RoleAny {
		return true
	}
	return Canonicalize(actual) == want
}

// IsAdmin reports whether role is an administrator role in any alias form.
func IsAdmin(role string) bool {
	return Canonicalize(role) == RoleAdmin
}

func (r Role) String() string {
	if r == RoleAny {
		return "any"
	}
	return string(r)
}
