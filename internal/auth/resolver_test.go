package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/litigo-hq/litigo/internal/auth"
	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/shared"
	"github.com/litigo-hq/litigo/internal/tenants"
)

type stubIdentityRepo struct {
	identities map[int64]*auth.Identity
}

func (s *stubIdentityRepo) FindIdentityByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	for _, identity := range s.identities {
		if identity.Email == email {
			return identity, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubIdentityRepo) FindIdentityByID(ctx context.Context, id int64) (*auth.Identity, error) {
	identity, ok := s.identities[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return identity, nil
}

type stubMemberships struct {
	byIdentity map[int64][]tenants.Membership
}

func (s *stubMemberships) FindMemberships(ctx context.Context, identityID int64) ([]tenants.Membership, error) {
	return s.byIdentity[identityID], nil
}

type resolverFixture struct {
	resolver *auth.Resolver
	codec    *auth.TokenCodec
	repo     *stubIdentityRepo
	members  *stubMemberships
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	repo := &stubIdentityRepo{identities: map[int64]*auth.Identity{}}
	members := &stubMemberships{byIdentity: map[int64][]tenants.Membership{}}
	codec := auth.NewTokenCodec("resolver-secret", time.Hour)
	resolver := auth.NewResolver(repo, members, rbac.NewCatalog(), codec)
	return &resolverFixture{resolver: resolver, codec: codec, repo: repo, members: members}
}

func (f *resolverFixture) addIdentity(id int64, active, platform bool) {
	f.repo.identities[id] = &auth.Identity{
		ID: id, Email: "user@firm.example", IsActive: active, IsPlatform: platform,
	}
}

func (f *resolverFixture) token(t *testing.T, claims auth.Claims) string {
	t.Helper()
	if claims.Version == 0 {
		claims.Version = auth.CurrentTokenVersion
	}
	raw, err := f.codec.Issue(claims)
	require.NoError(t, err)
	return raw
}

func TestResolveMissingCredential(t *testing.T) {
	f := newResolverFixture(t)
	_, err := f.resolver.Resolve(context.Background(), "")
	require.ErrorIs(t, err, auth.ErrMissingCredential)
}

func TestResolveGarbageCredential(t *testing.T) {
	f := newResolverFixture(t)
	_, err := f.resolver.Resolve(context.Background(), "not-a-token")
	require.ErrorIs(t, err, auth.ErrInvalidCredential)
}

func TestResolveStaleVersionForcesReauth(t *testing.T) {
	f := newResolverFixture(t)
	f.addIdentity(1, true, false)
	raw := f.token(t, auth.Claims{IdentityID: 1, Version: 1})

	_, err := f.resolver.Resolve(context.Background(), raw)
	require.ErrorIs(t, err, auth.ErrStaleCredential)
}

func TestResolveUnknownIdentity(t *testing.T) {
	f := newResolverFixture(t)
	raw := f.token(t, auth.Claims{IdentityID: 99})
	_, err := f.resolver.Resolve(context.Background(), raw)
	require.ErrorIs(t, err, auth.ErrInvalidCredential)
}

func TestResolveInactiveIdentity(t *testing.T) {
	f := newResolverFixture(t)
	f.addIdentity(1, false, false)
	raw := f.token(t, auth.Claims{IdentityID: 1})
	_, err := f.resolver.Resolve(context.Background(), raw)
	require.ErrorIs(t, err, auth.ErrInactiveAccount)
}

func TestResolveZeroMembershipsYieldsPlatformPrincipal(t *testing.T) {
	f := newResolverFixture(t)
	f.addIdentity(1, true, false)
	raw := f.token(t, auth.Claims{IdentityID: 1})

	principal, err := f.resolver.Resolve(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, rbac.RolePlatformAdmin, principal.Role)
	require.Zero(t, principal.TenantID)
	require.True(t, principal.Active)
	require.Equal(t, rbac.NewCatalog().PermissionsFor(rbac.RolePlatformAdmin), principal.Permissions)
}

func TestResolveExplicitPlatformFlagWinsOverMemberships(t *testing.T) {
	f := newResolverFixture(t)
	f.addIdentity(1, true, true)
	f.members.byIdentity[1] = []tenants.Membership{{
		IdentityID: 1, TenantID: 5, TenantActive: true, IsActive: true,
		Roles: []rbac.Role{rbac.RoleClient},
	}}
	raw := f.token(t, auth.Claims{IdentityID: 1})

	principal, err := f.resolver.Resolve(context.Background(), raw)
	require.NoError(t, err)
	require.True(t, principal.IsPlatform())
}

func TestResolveFirstUsableMembershipWins(t *testing.T) {
	f := newResolverFixture(t)
	f.addIdentity(1, true, false)
	f.members.byIdentity[1] = []tenants.Membership{
		{IdentityID: 1, TenantID: 3, TenantActive: false, IsActive: true, Roles: []rbac.Role{rbac.RoleOwner}},
		{IdentityID: 1, TenantID: 4, TenantActive: true, IsActive: false, Roles: []rbac.Role{rbac.RoleOwner}},
		{IdentityID: 1, TenantID: 5, TenantActive: true, IsActive: true, Roles: []rbac.Role{rbac.RoleJuniorPractitioner}},
	}
	raw := f.token(t, auth.Claims{IdentityID: 1})

	principal, err := f.resolver.Resolve(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, int64(5), principal.TenantID)
	require.Equal(t, rbac.RoleJuniorPractitioner, principal.Role)
}

func TestResolveAllMembershipsUnusable(t *testing.T) {
	f := newResolverFixture(t)
	f.addIdentity(1, true, false)
	f.members.byIdentity[1] = []tenants.Membership{
		{IdentityID: 1, TenantID: 3, TenantActive: false, IsActive: true, Roles: []rbac.Role{rbac.RoleOwner}},
	}
	raw := f.token(t, auth.Claims{IdentityID: 1})

	_, err := f.resolver.Resolve(context.Background(), raw)
	require.ErrorIs(t, err, auth.ErrInactiveAccount)
}

func TestResolveMultiRoleMembership(t *testing.T) {
	f := newResolverFixture(t)
	f.addIdentity(1, true, false)
	f.members.byIdentity[1] = []tenants.Membership{{
		IdentityID: 1, TenantID: 5, TenantActive: true, IsActive: true,
		Roles:        []rbac.Role{rbac.RoleFrontdesk, rbac.RoleSeniorPractitioner},
		CustomGrants: []rbac.Permission{rbac.PermAuditView},
	}}
	raw := f.token(t, auth.Claims{IdentityID: 1})

	principal, err := f.resolver.Resolve(context.Background(), raw)
	require.NoError(t, err)

	// Primary role is the highest of the assigned roles, while the
	// permission set is the union across all of them plus custom grants.
	require.Equal(t, rbac.RoleSeniorPractitioner, principal.Role)
	require.True(t, principal.Permissions.Has(rbac.PermCasesDelete), "from senior role")
	require.True(t, principal.Permissions.Has(rbac.PermClientsCreate), "from frontdesk role")
	require.True(t, principal.Permissions.Has(rbac.PermAuditView), "tenant custom grant")
	require.False(t, principal.Permissions.Has(rbac.PermRolesEdit))
}

func TestResolveIsIdempotent(t *testing.T) {
	f := newResolverFixture(t)
	f.addIdentity(1, true, false)
	f.members.byIdentity[1] = []tenants.Membership{{
		IdentityID: 1, TenantID: 5, TenantActive: true, IsActive: true,
		Roles: []rbac.Role{rbac.RoleAssistant},
	}}
	raw := f.token(t, auth.Claims{IdentityID: 1})

	first, err := f.resolver.Resolve(context.Background(), raw)
	require.NoError(t, err)
	second, err := f.resolver.Resolve(context.Background(), raw)
	require.NoError(t, err)

	require.Equal(t, first.Role, second.Role)
	require.Equal(t, first.Permissions, second.Permissions)
	require.Equal(t, first.TenantID, second.TenantID)
}

func TestResolveDelegatedCredential(t *testing.T) {
	f := newResolverFixture(t)
	f.addIdentity(2, true, false)
	f.members.byIdentity[2] = []tenants.Membership{
		{IdentityID: 2, TenantID: 5, TenantActive: true, IsActive: true, Roles: []rbac.Role{rbac.RoleOwner}},
		{IdentityID: 2, TenantID: 9, TenantActive: true, IsActive: true, Roles: []rbac.Role{rbac.RoleClient}},
	}
	raw := f.token(t, auth.Claims{
		IdentityID: 2,
		TenantID:   9,
		Delegation: &rbac.Delegation{ActorID: 1, Reason: "billing dispute", Ticket: "SUP-9"},
	})

	principal, err := f.resolver.Resolve(context.Background(), raw)
	require.NoError(t, err)

	// The pinned tenant picks the membership even when an earlier one is
	// usable, and the delegation tag survives resolution for auditing.
	require.Equal(t, int64(9), principal.TenantID)
	require.Equal(t, rbac.RoleClient, principal.Role)
	require.True(t, principal.Impersonated())
	require.Equal(t, int64(1), principal.Delegation.ActorID)
	require.Equal(t, "billing dispute", principal.Delegation.Reason)
}

func TestResolveDelegatedCredentialToInactiveMembership(t *testing.T) {
	f := newResolverFixture(t)
	f.addIdentity(2, true, false)
	f.members.byIdentity[2] = []tenants.Membership{
		{IdentityID: 2, TenantID: 5, TenantActive: true, IsActive: true, Roles: []rbac.Role{rbac.RoleOwner}},
	}
	raw := f.token(t, auth.Claims{IdentityID: 2, TenantID: 9})

	_, err := f.resolver.Resolve(context.Background(), raw)
	require.ErrorIs(t, err, auth.ErrInactiveAccount)
}
