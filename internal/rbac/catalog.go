package rbac

// Catalog is the immutable role-to-permission table. It is built once at
// startup and injected wherever role expansion or hierarchy comparison is
// needed, so tests can substitute fixtures.
//
// Adding a role means adding its grant list and its hierarchy position in
// the same declaration below; the constructor refuses a table where the two
// disagree.
type Catalog struct {
	grants   map[Role]PermissionSet
	levels   map[Role]int
	declared []Role
}

// declarationOrder lists every role from least to most privileged. Hierarchy
// levels are assigned from this ordering, so the order is load-bearing.
var declarationOrder = []Role{
	RoleClient,
	RoleFrontdesk,
	RoleAssistant,
	RoleJuniorPractitioner,
	RoleSeniorPractitioner,
	RoleOwner,
	RolePlatformAdmin,
}

// defaultGrants is the single source of truth for role defaults. Each role
// lists its full grant set explicitly; nothing is inferred from role names
// at runtime.
var defaultGrants = map[Role][]Permission{
	RoleClient: {
		PermCasesView,
		PermDocumentsView,
		PermBillingView,
	},
	RoleFrontdesk: {
		PermCasesView,
		PermClientsView,
		PermClientsCreate,
		PermClientsEdit,
		PermDocumentsView,
	},
	RoleAssistant: {
		PermCasesView,
		PermCasesCreate,
		PermCasesEdit,
		PermClientsView,
		PermClientsCreate,
		PermClientsEdit,
		PermDocumentsView,
		PermDocumentsUpload,
		PermDocumentsEdit,
	},
	RoleJuniorPractitioner: {
		PermCasesView,
		PermCasesCreate,
		PermCasesEdit,
		PermClientsView,
		PermClientsCreate,
		PermClientsEdit,
		PermDocumentsView,
		PermDocumentsUpload,
		PermDocumentsEdit,
		PermBillingView,
		PermReportsView,
	},
	RoleSeniorPractitioner: {
		PermCasesView,
		PermCasesCreate,
		PermCasesEdit,
		PermCasesAssign,
		PermCasesDelete,
		PermClientsView,
		PermClientsCreate,
		PermClientsEdit,
		PermClientsDelete,
		PermDocumentsView,
		PermDocumentsUpload,
		PermDocumentsEdit,
		PermDocumentsDelete,
		PermBillingView,
		PermBillingEdit,
		PermReportsView,
		PermUsersView,
	},
	RoleOwner: {
		PermCasesView,
		PermCasesCreate,
		PermCasesEdit,
		PermCasesAssign,
		PermCasesDelete,
		PermClientsView,
		PermClientsCreate,
		PermClientsEdit,
		PermClientsDelete,
		PermDocumentsView,
		PermDocumentsUpload,
		PermDocumentsEdit,
		PermDocumentsDelete,
		PermBillingView,
		PermBillingEdit,
		PermReportsView,
		PermUsersView,
		PermUsersEdit,
		PermUsersInvite,
		PermRolesView,
		PermRolesEdit,
		PermAuditView,
	},
	RolePlatformAdmin: {
		PermCasesView,
		PermCasesCreate,
		PermCasesEdit,
		PermCasesAssign,
		PermCasesDelete,
		PermClientsView,
		PermClientsCreate,
		PermClientsEdit,
		PermClientsDelete,
		PermDocumentsView,
		PermDocumentsUpload,
		PermDocumentsEdit,
		PermDocumentsDelete,
		PermBillingView,
		PermBillingEdit,
		PermReportsView,
		PermUsersView,
		PermUsersEdit,
		PermUsersInvite,
		PermRolesView,
		PermRolesEdit,
		PermAuditView,
		PermPlatformTenantsView,
		PermPlatformImpersonate,
	},
}

// NewCatalog builds the immutable catalog. It panics when the declaration
// order and the grant table disagree, which can only happen on a bad code
// change and should fail the process at startup, not at request time.
func NewCatalog() *Catalog {
	grants := make(map[Role]PermissionSet, len(declarationOrder))
	levels := make(map[Role]int, len(declarationOrder))
	for i, role := range declarationOrder {
		list, ok := defaultGrants[role]
		if !ok {
			panic("rbac: role " + string(role) + " missing from grant table")
		}
		grants[role] = NewPermissionSet(list...)
		levels[role] = i + 1
	}
	if len(defaultGrants) != len(declarationOrder) {
		panic("rbac: grant table contains undeclared role")
	}
	declared := make([]Role, len(declarationOrder))
	copy(declared, declarationOrder)
	return &Catalog{grants: grants, levels: levels, declared: declared}
}

// PermissionsFor returns the default grant set for a role. The result is a
// copy, never nil; unknown roles map to the empty set.
func (c *Catalog) PermissionsFor(role Role) PermissionSet {
	set, ok := c.grants[role]
	if !ok {
		return PermissionSet{}
	}
	out := make(PermissionSet, len(set))
	for p := range set {
		out[p] = struct{}{}
	}
	return out
}

// HierarchyLevel returns the numeric hierarchy position for a role, strictly
// increasing from least to most privileged. Unknown roles map to zero, below
// every declared role.
func (c *Catalog) HierarchyLevel(role Role) int {
	return c.levels[role]
}

// DeclaredRoles returns every role in declaration order.
func (c *Catalog) DeclaredRoles() []Role {
	out := make([]Role, len(c.declared))
	copy(out, c.declared)
	return out
}

// Known reports whether the role is part of the closed set.
func (c *Catalog) Known(role Role) bool {
	_, ok := c.levels[role]
	return ok
}

// PrimaryRole picks the highest-hierarchy role from the list. Ties are
// broken by catalog declaration order, which also covers equal roles listed
// twice. An empty list yields the zero Role.
func (c *Catalog) PrimaryRole(roles []Role) Role {
	var best Role
	bestLevel := -1
	for _, candidate := range c.declared {
		for _, assigned := range roles {
			if assigned == candidate && c.levels[candidate] > bestLevel {
				best = candidate
				bestLevel = c.levels[candidate]
			}
		}
	}
	return best
}
