// Package visibility maps caller identity (roles plus tenant/user claims)
// to the access scope every query and command must honor. Resolve is the
// single choke point: handlers call it once per request and pass the
// resulting scope to workflows, so role branching never leaks into
// individual endpoints.
package visibility

import (
	dErrors "dataspace/pkg/domain-errors"
)

// Role is a realm role carried by the caller's token.
type Role string

const (
	RoleAdmin           Role = "ROLE_ADMIN"
	RoleAdminTenant     Role = "ROLE_ADMIN_TENANT"
	RoleUserParticipant Role = "ROLE_USER_PARTICIPANT"
)

// rolePriority is the fixed tie-break order when a caller holds several
// applicable roles: the most privileged wins.
var rolePriority = []Role{RoleAdmin, RoleAdminTenant, RoleUserParticipant}

// Claims are the token claims the resolver consumes.
type Claims struct {
	TenantName string
	Username   string
}

// Identity is the authenticated caller as seen by the resolver.
type Identity struct {
	Roles  []Role
	Claims Claims
}

// HasRole reports whether the identity carries the given role.
func (i Identity) HasRole(role Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Kind discriminates the breadth of a resolved scope.
type Kind int

const (
	// KindGlobal grants access to every tenant and participant.
	KindGlobal Kind = iota
	// KindTenant restricts access to a single tenant.
	KindTenant
	// KindParticipant restricts access to the single participant owned by
	// (tenant, username).
	KindParticipant
)

// Scope is the resolved access breadth for one request. It is a value; the
// zero value is not valid, scopes only come out of Resolve.
type Scope struct {
	Kind       Kind
	Role       Role
	TenantName string
	Username   string
}

// Global reports whether the scope spans all tenants.
func (s Scope) Global() bool { return s.Kind == KindGlobal }

// Resolve maps the identity to a scope for an operation permitting the
// given roles. Denials are split three ways: a caller with no roles at all
// is unauthorized, a caller whose roles do not overlap the permitted set is
// forbidden, and a caller whose selected role lacks its required claims is
// a bad request.
func Resolve(identity Identity, permitted ...Role) (Scope, error) {
	if len(identity.Roles) == 0 {
		return Scope{}, dErrors.New(dErrors.CodeUnauthorized, "no role present")
	}

	role, ok := selectRole(identity, permitted)
	if !ok {
		return Scope{}, dErrors.New(dErrors.CodeForbidden, "role not permitted for this operation")
	}

	switch role {
	case RoleAdmin:
		return Scope{Kind: KindGlobal, Role: role}, nil

	case RoleAdminTenant:
		if identity.Claims.TenantName == "" {
			return Scope{}, dErrors.New(dErrors.CodeBadRequest, "tenantName claim is missing")
		}
		return Scope{
			Kind:       KindTenant,
			Role:       role,
			TenantName: identity.Claims.TenantName,
		}, nil

	case RoleUserParticipant:
		if identity.Claims.TenantName == "" {
			return Scope{}, dErrors.New(dErrors.CodeBadRequest, "tenantName claim is missing")
		}
		if identity.Claims.Username == "" {
			return Scope{}, dErrors.New(dErrors.CodeBadRequest, "username claim is missing")
		}
		return Scope{
			Kind:       KindParticipant,
			Role:       role,
			TenantName: identity.Claims.TenantName,
			Username:   identity.Claims.Username,
		}, nil
	}

	return Scope{}, dErrors.New(dErrors.CodeForbidden, "role not permitted for this operation")
}

// selectRole picks the highest-priority role held by the identity among the
// permitted set. An empty permitted set permits every role.
func selectRole(identity Identity, permitted []Role) (Role, bool) {
	allowed := func(r Role) bool {
		if len(permitted) == 0 {
			return true
		}
		for _, p := range permitted {
			if p == r {
				return true
			}
		}
		return false
	}
	for _, r := range rolePriority {
		if identity.HasRole(r) && allowed(r) {
			return r, true
		}
	}
	return "", false
}
