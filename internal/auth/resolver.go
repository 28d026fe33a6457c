package auth

import (
	"context"
	"errors"

	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/shared"
	"github.com/litigo-hq/litigo/internal/tenants"
)

// MembershipSource yields an identity's tenant memberships in a
// deterministic order; the first usable membership anchors the principal.
type MembershipSource interface {
	FindMemberships(ctx context.Context, identityID int64) ([]tenants.Membership, error)
}

// Resolver turns a bearer credential into a Principal. Resolution runs fresh
// on every request so role and permission changes apply on the next call.
type Resolver struct {
	repo        Repository
	memberships MembershipSource
	catalog     *rbac.Catalog
	codec       *TokenCodec
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, memberships MembershipSource, catalog *rbac.Catalog, codec *TokenCodec) *Resolver {
	return &Resolver{repo: repo, memberships: memberships, catalog: catalog, codec: codec}
}

// Resolve verifies the credential and constructs the request principal, or
// returns one of the typed resolution failures.
func (r *Resolver) Resolve(ctx context.Context, credential string) (rbac.Principal, error) {
	if credential == "" {
		return rbac.Principal{}, ErrMissingCredential
	}
	claims, err := r.codec.Verify(credential)
	if err != nil {
		return rbac.Principal{}, ErrInvalidCredential
	}
	if claims.Version < CurrentTokenVersion {
		return rbac.Principal{}, ErrStaleCredential
	}

	identity, err := r.repo.FindIdentityByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return rbac.Principal{}, ErrInvalidCredential
		}
		return rbac.Principal{}, err
	}
	if !identity.IsActive {
		return rbac.Principal{}, ErrInactiveAccount
	}

	memberships, err := r.memberships.FindMemberships(ctx, identity.ID)
	if err != nil {
		return rbac.Principal{}, err
	}

	// An explicit platform flag wins; zero memberships fall back to the
	// same treatment for identities provisioned before the flag existed.
	if identity.IsPlatform || len(memberships) == 0 {
		return r.platformPrincipal(identity, claims), nil
	}

	membership, ok := r.selectMembership(memberships, claims.TenantID)
	if !ok {
		return rbac.Principal{}, ErrInactiveAccount
	}

	permissions := rbac.PermissionSet{}
	for _, role := range membership.Roles {
		permissions = permissions.Union(r.catalog.PermissionsFor(role))
	}
	permissions.Add(membership.CustomGrants...)

	return rbac.Principal{
		IdentityID:  identity.ID,
		TenantID:    membership.TenantID,
		Role:        r.catalog.PrimaryRole(membership.Roles),
		Roles:       membership.Roles,
		Permissions: permissions,
		Active:      true,
		Delegation:  claims.Delegation,
	}, nil
}

// selectMembership picks the membership anchoring the principal. A tenant
// pinned in the credential (delegated tokens) must match exactly; otherwise
// the first membership that is active inside an active tenant wins.
func (r *Resolver) selectMembership(memberships []tenants.Membership, pinnedTenant int64) (tenants.Membership, bool) {
	for _, m := range memberships {
		if !m.Usable() {
			continue
		}
		if pinnedTenant != 0 && m.TenantID != pinnedTenant {
			continue
		}
		return m, true
	}
	return tenants.Membership{}, false
}

func (r *Resolver) platformPrincipal(identity *Identity, claims Claims) rbac.Principal {
	return rbac.Principal{
		IdentityID:  identity.ID,
		TenantID:    0,
		Role:        rbac.RolePlatformAdmin,
		Roles:       []rbac.Role{rbac.RolePlatformAdmin},
		Permissions: r.catalog.PermissionsFor(rbac.RolePlatformAdmin),
		Active:      true,
		Delegation:  claims.Delegation,
	}
}
