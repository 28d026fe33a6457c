package rbac

// Evaluator answers authorization questions about a Principal. Every method
// is a pure function of its arguments: denial is a return value, never a
// panic, so call sites cannot mistake an escaped error for "allowed".
type Evaluator struct {
	catalog *Catalog
}

// NewEvaluator constructs an Evaluator over the given catalog.
func NewEvaluator(catalog *Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// HasPermission reports whether an active principal holds the permission.
func (e *Evaluator) HasPermission(p Principal, perm Permission) bool {
	return p.Active && p.Permissions.Has(perm)
}

// HasAnyPermission reports whether an active principal holds at least one of
// the permissions. An empty list denies.
func (e *Evaluator) HasAnyPermission(p Principal, perms ...Permission) bool {
	if !p.Active {
		return false
	}
	for _, perm := range perms {
		if p.Permissions.Has(perm) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether an active principal holds every listed
// permission.
func (e *Evaluator) HasAllPermissions(p Principal, perms ...Permission) bool {
	if !p.Active {
		return false
	}
	for _, perm := range perms {
		if !p.Permissions.Has(perm) {
			return false
		}
	}
	return true
}

// HasRoleOrHigher reports whether the principal's primary role sits at or
// above the given role in the hierarchy.
func (e *Evaluator) HasRoleOrHigher(p Principal, role Role) bool {
	if !p.Active {
		return false
	}
	return e.catalog.HierarchyLevel(p.Role) >= e.catalog.HierarchyLevel(role)
}

// CanAccessResource is the per-record check used by handlers that need more
// than a permission test. Platform admins pass for any resource. Tenant
// principals must match the resource's tenant, then pass when they hold the
// top tenant role, own the resource, or hold the broad-access practitioner
// role.
func (e *Evaluator) CanAccessResource(p Principal, resourceOwnerID, resourceTenantID int64) bool {
	if !p.Active {
		return false
	}
	if p.Role == RolePlatformAdmin {
		return true
	}
	if p.TenantID != resourceTenantID {
		return false
	}
	switch {
	case p.Role == RoleOwner:
		return true
	case p.IdentityID == resourceOwnerID:
		return true
	case p.Role == RoleSeniorPractitioner:
		return true
	}
	return false
}
