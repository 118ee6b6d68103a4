package auth

import "fmt"

// Requirement is a declarative access rule evaluated against a resolved
// principal. Evaluation is pure: authentication first, then the role or
// ownership check, short-circuiting on the first failure with a specific
// reason. There is never a generic deny.
type Requirement interface {
	check(p Principal) error
}

type anyAuthenticated struct{}

func (anyAuthenticated) check(p Principal) error { return nil }

// AnyAuthenticated passes for every resolved principal.
func AnyAuthenticated() Requirement { return anyAuthenticated{} }

type roleAtLeast struct {
	min Role
}

func (r roleAtLeast) check(p Principal) error {
	if !p.Role.AtLeast(r.min) {
		return fmt.Errorf("%w: requires %s role or above", ErrUnauthorized, r.min)
	}
	return nil
}

// RoleAtLeast requires the principal's role to meet the minimum.
func RoleAtLeast(min Role) Requirement { return roleAtLeast{min: min} }

type ownerOrRoleAtLeast struct {
	ownerID string
	min     Role
}

func (r ownerOrRoleAtLeast) check(p Principal) error {
	if p.ID == r.ownerID {
		return nil
	}
	if !p.Role.AtLeast(r.min) {
		return fmt.Errorf("%w: only the owner or a %s can do this", ErrUnauthorized, r.min)
	}
	return nil
}

// OwnerOrRoleAtLeast passes when the principal owns the resource or meets
// the minimum role.
func OwnerOrRoleAtLeast(ownerID string, min Role) Requirement {
	return ownerOrRoleAtLeast{ownerID: ownerID, min: min}
}

type superAdminOnly struct{}

func (superAdminOnly) check(p Principal) error {
	if !p.IsSuperAdmin() {
		return fmt.Errorf("%w: reserved for the super administrator", ErrUnauthorized)
	}
	return nil
}

// SuperAdminOnly passes only for the synthetic cross-tenant administrator.
func SuperAdminOnly() Requirement { return superAdminOnly{} }

// Authorize evaluates a requirement for a principal.
func Authorize(p Principal, req Requirement) error {
	if p.ID == "" {
		return ErrNotAuthenticated
	}
	return req.check(p)
}
