package impersonate

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/litigo-hq/litigo/internal/audit"
	"github.com/litigo-hq/litigo/internal/auth"
	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/shared"
	"github.com/litigo-hq/litigo/internal/tenants"
)

type stubIdentities struct {
	identities map[int64]auth.Identity
}

func (s *stubIdentities) FindIdentityByID(_ context.Context, id int64) (*auth.Identity, error) {
	identity, ok := s.identities[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &identity, nil
}

type stubMemberships struct {
	byIdentity map[int64][]tenants.Membership
}

func (s *stubMemberships) FindMemberships(_ context.Context, identityID int64) ([]tenants.Membership, error) {
	return s.byIdentity[identityID], nil
}

type stubRecorder struct {
	records []audit.Record
	err     error
}

func (s *stubRecorder) Record(_ context.Context, rec audit.Record) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type fixture struct {
	service  *Service
	recorder *stubRecorder
	codec    *auth.TokenCodec
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	catalog := rbac.NewCatalog()
	identities := &stubIdentities{identities: map[int64]auth.Identity{
		10: {ID: 10, Email: "paralegal@firm.test", IsActive: true},
		11: {ID: 11, Email: "suspended@firm.test", IsActive: false},
	}}
	memberships := &stubMemberships{byIdentity: map[int64][]tenants.Membership{
		10: {
			{ID: 1, IdentityID: 10, TenantID: 7, TenantActive: true, IsActive: true, Roles: []rbac.Role{rbac.RoleAssistant}},
		},
	}}
	recorder := &stubRecorder{}
	codec := auth.NewTokenCodec("impersonation-test-secret", time.Hour)
	service := NewService(slog.Default(), catalog, rbac.NewEvaluator(catalog), identities, memberships, recorder, codec, nil, 30*time.Minute)
	return fixture{service: service, recorder: recorder, codec: codec}
}

func platformActor(catalog *rbac.Catalog) rbac.Principal {
	return rbac.Principal{
		IdentityID:  1,
		Role:        rbac.RolePlatformAdmin,
		Roles:       []rbac.Role{rbac.RolePlatformAdmin},
		Permissions: catalog.PermissionsFor(rbac.RolePlatformAdmin),
		Active:      true,
	}
}

func TestStartRequiresPlatformOperator(t *testing.T) {
	fx := newFixture(t)
	catalog := rbac.NewCatalog()
	owner := rbac.Principal{
		IdentityID:  2,
		TenantID:    7,
		Role:        rbac.RoleOwner,
		Permissions: catalog.PermissionsFor(rbac.RoleOwner),
		Active:      true,
	}

	_, err := fx.service.Start(context.Background(), StartParams{Actor: owner, TargetID: 10, TenantID: 7, Reason: "billing dispute"})
	require.ErrorIs(t, err, ErrNotPlatformOperator)
	require.Empty(t, fx.recorder.records)
}

func TestStartRejectsEmptyReasonBeforeAnySideEffect(t *testing.T) {
	fx := newFixture(t)

	grant, err := fx.service.Start(context.Background(), StartParams{Actor: platformActor(rbac.NewCatalog()), TargetID: 10, TenantID: 7})
	require.ErrorIs(t, err, ErrReasonRequired)
	require.Empty(t, grant.Token)
	require.Empty(t, fx.recorder.records, "no audit entry before validation passes")
}

func TestStartRejectsUnusableTargets(t *testing.T) {
	fx := newFixture(t)
	actor := platformActor(rbac.NewCatalog())

	_, err := fx.service.Start(context.Background(), StartParams{Actor: actor, TargetID: 99, TenantID: 7, Reason: "missing identity"})
	require.ErrorIs(t, err, ErrTargetUnavailable)

	_, err = fx.service.Start(context.Background(), StartParams{Actor: actor, TargetID: 11, TenantID: 7, Reason: "deactivated identity"})
	require.ErrorIs(t, err, ErrTargetUnavailable)

	_, err = fx.service.Start(context.Background(), StartParams{Actor: actor, TargetID: 10, TenantID: 8, Reason: "wrong tenant"})
	require.ErrorIs(t, err, ErrTargetUnavailable)

	require.Empty(t, fx.recorder.records)
}

func TestStartMintsBoundedDelegatedCredential(t *testing.T) {
	fx := newFixture(t)
	before := time.Now()

	grant, err := fx.service.Start(context.Background(), StartParams{
		Actor:    platformActor(rbac.NewCatalog()),
		TargetID: 10,
		TenantID: 7,
		Reason:   "billing dispute #4821",
		Origin:   "203.0.113.9:51724",
	})
	require.NoError(t, err)
	require.NotEmpty(t, grant.Token)
	require.NotEmpty(t, grant.Ticket)
	require.Equal(t, rbac.RoleAssistant, grant.Role)
	require.WithinDuration(t, before.Add(30*time.Minute), grant.ExpiresAt, 5*time.Second,
		"session bound to its own window, not the login window")

	claims, err := fx.codec.Verify(grant.Token)
	require.NoError(t, err)
	require.Equal(t, int64(10), claims.IdentityID)
	require.Equal(t, int64(7), claims.TenantID, "credential pinned to the target tenant")
	require.NotNil(t, claims.Delegation)
	require.Equal(t, int64(1), claims.Delegation.ActorID)
	require.Equal(t, "billing dispute #4821", claims.Delegation.Reason)
	require.Equal(t, grant.Ticket, claims.Delegation.Ticket)
	require.WithinDuration(t, before, claims.Delegation.StartedAt, 5*time.Second,
		"session start carried through the credential")

	require.Len(t, fx.recorder.records, 1)
	rec := fx.recorder.records[0]
	require.Equal(t, audit.ActionImpersonationStart, rec.Action)
	require.Equal(t, int64(1), rec.ActorID)
	require.Equal(t, int64(7), rec.TenantID)
	require.Equal(t, "10", rec.EntityID)
	require.Equal(t, "203.0.113.9:51724", rec.Origin)
	require.Equal(t, "billing dispute #4821", rec.After["reason"])
}

func TestStartHonoursCallerTicketReference(t *testing.T) {
	fx := newFixture(t)

	grant, err := fx.service.Start(context.Background(), StartParams{
		Actor:     platformActor(rbac.NewCatalog()),
		TargetID:  10,
		TenantID:  7,
		Reason:    "billing dispute",
		TicketRef: "SUP-4821",
	})
	require.NoError(t, err)
	require.Equal(t, "SUP-4821", grant.Ticket)

	claims, err := fx.codec.Verify(grant.Token)
	require.NoError(t, err)
	require.Equal(t, "SUP-4821", claims.Delegation.Ticket)

	require.Len(t, fx.recorder.records, 1)
	require.Equal(t, "SUP-4821", fx.recorder.records[0].After["ticket"])
}

func TestStartAbortsWhenAuditWriteFails(t *testing.T) {
	fx := newFixture(t)
	fx.recorder.err = errors.New("audit store down")

	grant, err := fx.service.Start(context.Background(), StartParams{Actor: platformActor(rbac.NewCatalog()), TargetID: 10, TenantID: 7, Reason: "billing dispute"})
	require.Error(t, err)
	require.Empty(t, grant.Token, "no credential without a durable start entry")
}

func TestEndRequiresDelegatedSession(t *testing.T) {
	fx := newFixture(t)

	err := fx.service.End(context.Background(), rbac.Principal{IdentityID: 10, TenantID: 7, Active: true}, "203.0.113.9:51724")
	require.ErrorIs(t, err, ErrNotImpersonating)
	require.Empty(t, fx.recorder.records)
}

func TestEndRecordsClosure(t *testing.T) {
	fx := newFixture(t)
	principal := rbac.Principal{
		IdentityID: 10,
		TenantID:   7,
		Active:     true,
		Delegation: &rbac.Delegation{
			ActorID:   1,
			Reason:    "billing dispute",
			Ticket:    "tkt-1",
			StartedAt: time.Now().Add(-3 * time.Minute),
		},
	}

	require.NoError(t, fx.service.End(context.Background(), principal, "203.0.113.9:51724"))
	require.Len(t, fx.recorder.records, 1)
	rec := fx.recorder.records[0]
	require.Equal(t, audit.ActionImpersonationEnd, rec.Action)
	require.Equal(t, int64(1), rec.ActorID)
	require.Equal(t, "203.0.113.9:51724", rec.Origin)
	require.Equal(t, "tkt-1", rec.After["ticket"])

	durationMs, ok := rec.After["duration_ms"].(int64)
	require.True(t, ok, "closure entry carries the elapsed session time")
	require.GreaterOrEqual(t, durationMs, (3 * time.Minute).Milliseconds())
}
