package auth

import (
	"fmt"
	"strings"
)

// Role is the canonical three-tier role stored on the user row.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// roleRank orders roles for minimum-role checks: admin > manager > member.
var roleRank = map[Role]int{
	RoleMember:  1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// roleAliases maps the four-tier labels some clients send onto the canonical
// enum. The aliases are a display/routing vocabulary, never a second source
// of truth.
var roleAliases = map[string]Role{
	"admin":    RoleAdmin,
	"hr":       RoleManager,
	"manager":  RoleManager,
	"employee": RoleMember,
	"member":   RoleMember,
}

// ParseRole normalizes a role label, accepting the four-tier aliases.
func ParseRole(label string) (Role, error) {
	role, ok := roleAliases[strings.TrimSpace(strings.ToLower(label))]
	if !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, label)
	}
	return role, nil
}

// AtLeast reports whether r satisfies the minimum role min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// SuperAdminID is the synthetic principal id for the environment-configured
// super-admin. It never corresponds to a user row.
const SuperAdminID = "super-admin"

// Principal is the resolved identity for the current caller.
type Principal struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// IsSuperAdmin reports whether the principal is the synthetic cross-tenant
// administrator. Super-admin is never attributed an organization.
func (p Principal) IsSuperAdmin() bool {
	return p.ID == SuperAdminID && p.OrganizationID == ""
}

// Account is the slice of the user row the resolver depends on. The people
// package owns the full user model; the store satisfies both views.
type Account struct {
	ID             string
	OrganizationID string
	Email          string
	Name           string
	Role           Role
	Status         string
	PasswordHash   string
}

const (
	StatusInvited   = "invited"
	StatusActive    = "active"
	StatusSuspended = "suspended"
)
