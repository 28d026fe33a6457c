package tenants

import (
	"time"

	"github.com/litigo-hq/litigo/internal/rbac"
)

// Tenant is one law firm sharing the platform.
type Tenant struct {
	ID        int64
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership ties an identity to a tenant with one or more roles. A
// resource's tenant id is immutable after creation; memberships are the only
// link between identities and tenant data.
type Membership struct {
	ID           int64
	IdentityID   int64
	TenantID     int64
	TenantActive bool
	Roles        []rbac.Role
	CustomGrants []rbac.Permission
	IsActive     bool
	JoinedAt     time.Time
}

// Usable reports whether the membership can anchor a principal: both the
// membership and its tenant must be active.
func (m Membership) Usable() bool {
	return m.IsActive && m.TenantActive
}
