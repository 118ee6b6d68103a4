// Package tenant mediates every data access with an organization scope.
// Domain stores accept a Scope instead of a raw organization id, so a
// call site cannot forget the filter: the only way to obtain a usable
// Scope is through Require (org-bound) or All (super-admin sentinel).
package tenant

import (
	"fmt"

	"peopledesk.org/internal/auth"
)

// Scope carries the organization boundary for one unit of work.
type Scope struct {
	orgID     string
	principal auth.Principal
	all       bool
}

// Require binds the principal's organization into a scope. Principals
// without an organization (including super-admin) are rejected; cross-tenant
// work must go through All explicitly.
func Require(p auth.Principal) (Scope, error) {
	if p.ID == "" {
		return Scope{}, auth.ErrNotAuthenticated
	}
	if p.OrganizationID == "" {
		return Scope{}, fmt.Errorf("%w: user %s", auth.ErrNoOrganization, p.ID)
	}
	return Scope{orgID: p.OrganizationID, principal: p}, nil
}

// ForAPIToken binds a verified public-API token's organization into a scope.
// The synthetic principal attributes the work to the token, not to a user
// row, and carries the lowest role.
func ForAPIToken(claims *auth.APIClaims) (Scope, error) {
	if claims == nil || claims.OrganizationID == "" {
		return Scope{}, auth.ErrNotAuthenticated
	}
	p := auth.Principal{
		ID:             "api:" + claims.OrganizationID,
		OrganizationID: claims.OrganizationID,
		Role:           auth.RoleMember,
	}
	return Scope{orgID: claims.OrganizationID, principal: p}, nil
}

// All returns the unscoped sentinel reserved for cross-tenant administrative
// operations. Only the super-admin may hold it.
func All(p auth.Principal) (Scope, error) {
	if !p.IsSuperAdmin() {
		return Scope{}, fmt.Errorf("%w: cross-tenant scope is reserved for the super administrator", auth.ErrUnauthorized)
	}
	return Scope{principal: p, all: true}, nil
}

// OrgID returns the bound organization id; empty only for the cross-tenant
// sentinel.
func (s Scope) OrgID() string { return s.orgID }

// Principal returns the acting principal.
func (s Scope) Principal() auth.Principal { return s.principal }

// CrossTenant reports whether the scope is the super-admin sentinel.
func (s Scope) CrossTenant() bool { return s.all }

// Valid reports whether the scope was produced by Require or All. The zero
// Scope is unusable and store accessors reject it.
func (s Scope) Valid() bool { return s.all || s.orgID != "" }
