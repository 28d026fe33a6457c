package rbac

import "time"

// Role identifies one of the fixed platform roles.
type Role string

// The closed role set, least to most privileged.
const (
	RoleClient             Role = "client"
	RoleFrontdesk          Role = "frontdesk"
	RoleAssistant          Role = "assistant"
	RoleJuniorPractitioner Role = "junior_practitioner"
	RoleSeniorPractitioner Role = "senior_practitioner"
	RoleOwner              Role = "owner"
	RolePlatformAdmin      Role = "platform_admin"
)

// Permission is a namespaced capability token of the form <domain>.<action>.
type Permission string

// Case management permissions.
const (
	PermCasesView   Permission = "cases.view"
	PermCasesCreate Permission = "cases.create"
	PermCasesEdit   Permission = "cases.edit"
	PermCasesAssign Permission = "cases.assign"
	PermCasesDelete Permission = "cases.delete"
)

// Document permissions.
const (
	PermDocumentsView   Permission = "documents.view"
	PermDocumentsUpload Permission = "documents.upload"
	PermDocumentsEdit   Permission = "documents.edit"
	PermDocumentsDelete Permission = "documents.delete"
)

// Client-record permissions.
const (
	PermClientsView   Permission = "clients.view"
	PermClientsCreate Permission = "clients.create"
	PermClientsEdit   Permission = "clients.edit"
	PermClientsDelete Permission = "clients.delete"
)

// Billing and reporting permissions.
const (
	PermBillingView Permission = "billing.view"
	PermBillingEdit Permission = "billing.edit"
	PermReportsView Permission = "reports.view"
)

// Tenant administration permissions.
const (
	PermUsersView   Permission = "users.view"
	PermUsersEdit   Permission = "users.edit"
	PermUsersInvite Permission = "users.invite"
	PermRolesView   Permission = "roles.view"
	PermRolesEdit   Permission = "roles.edit"
	PermAuditView   Permission = "audit.view"
)

// Platform operator permissions.
const (
	PermPlatformTenantsView Permission = "platform.tenants.view"
	PermPlatformImpersonate Permission = "platform.impersonate"
)

// PermissionSet is an unordered collection of permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the permission is in the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Add inserts permissions into the set.
func (s PermissionSet) Add(perms ...Permission) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

// Union returns a new set containing both operands.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	merged := make(PermissionSet, len(s)+len(other))
	for p := range s {
		merged[p] = struct{}{}
	}
	for p := range other {
		merged[p] = struct{}{}
	}
	return merged
}

// Delegation records that a principal acts on behalf of another identity.
// StartedAt comes from the credential's issue time and dates the session,
// not the individual request.
type Delegation struct {
	ActorID   int64
	Reason    string
	Ticket    string
	StartedAt time.Time
}

// Principal is the authenticated actor for a single request. It is built
// fresh per request and never cached so role or permission changes take
// effect on the next call.
type Principal struct {
	IdentityID  int64
	TenantID    int64 // zero means platform scope
	Role        Role  // highest-hierarchy assigned role
	Roles       []Role
	Permissions PermissionSet
	Active      bool
	Delegation  *Delegation
}

// IsPlatform reports whether the principal operates at platform scope.
func (p Principal) IsPlatform() bool {
	return p.TenantID == 0 && p.Role == RolePlatformAdmin
}

// Impersonated reports whether the principal was minted through impersonation.
func (p Principal) Impersonated() bool {
	return p.Delegation != nil
}
