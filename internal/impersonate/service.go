// Package impersonate lets platform operators act inside a tenant as one of
// its members. Sessions are explicit, bounded and audited on both ends.
package impersonate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/litigo-hq/litigo/internal/audit"
	"github.com/litigo-hq/litigo/internal/auth"
	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/shared"
	"github.com/litigo-hq/litigo/internal/tenants"
)

var (
	// ErrNotPlatformOperator rejects actors without the impersonation grant.
	ErrNotPlatformOperator = errors.New("impersonate: caller is not a platform operator")
	// ErrReasonRequired rejects sessions started without a stated reason.
	ErrReasonRequired = errors.New("impersonate: reason is required")
	// ErrTargetUnavailable rejects targets without a usable membership in the tenant.
	ErrTargetUnavailable = errors.New("impersonate: target has no usable membership in tenant")
	// ErrNotImpersonating rejects End calls on ordinary sessions.
	ErrNotImpersonating = errors.New("impersonate: session is not delegated")
)

// Recorder is the slice of the audit log this package writes to.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// Identities looks up the target account.
type Identities interface {
	FindIdentityByID(ctx context.Context, id int64) (*auth.Identity, error)
}

// Memberships looks up the target's tenant memberships.
type Memberships interface {
	FindMemberships(ctx context.Context, identityID int64) ([]tenants.Membership, error)
}

// Metrics is the observability slice this package increments.
type Metrics interface {
	ImpersonationInc()
}

// Grant is a started impersonation session.
type Grant struct {
	Token      string
	Ticket     string
	TenantID   int64
	IdentityID int64
	Role       rbac.Role
	ExpiresAt  time.Time
}

// Service starts and ends impersonation sessions.
type Service struct {
	logger      *slog.Logger
	catalog     *rbac.Catalog
	evaluator   *rbac.Evaluator
	identities  Identities
	memberships Memberships
	recorder    Recorder
	codec       *auth.TokenCodec
	metrics     Metrics
	ttl         time.Duration
}

// NewService constructs a Service. ttl bounds every session regardless of the
// codec's default credential window.
func NewService(logger *slog.Logger, catalog *rbac.Catalog, evaluator *rbac.Evaluator, identities Identities, memberships Memberships, recorder Recorder, codec *auth.TokenCodec, metrics Metrics, ttl time.Duration) *Service {
	return &Service{
		logger:      logger,
		catalog:     catalog,
		evaluator:   evaluator,
		identities:  identities,
		memberships: memberships,
		recorder:    recorder,
		codec:       codec,
		metrics:     metrics,
		ttl:         ttl,
	}
}

// StartParams describes a session start request. TicketRef lets the caller
// pin the session to an external support ticket; when empty a fresh reference
// is generated. Origin is the caller's remote address for the audit trail.
type StartParams struct {
	Actor     rbac.Principal
	TargetID  int64
	TenantID  int64
	Reason    string
	TicketRef string
	Origin    string
}

// Start validates the actor and reason, records the start entry, then mints a
// bounded delegated credential pinned to the target's tenant. Nothing is
// minted unless the start entry is durably written.
func (s *Service) Start(ctx context.Context, params StartParams) (Grant, error) {
	if !s.evaluator.HasPermission(params.Actor, rbac.PermPlatformImpersonate) {
		return Grant{}, ErrNotPlatformOperator
	}
	if params.Reason == "" {
		return Grant{}, ErrReasonRequired
	}

	identity, err := s.identities.FindIdentityByID(ctx, params.TargetID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Grant{}, ErrTargetUnavailable
		}
		return Grant{}, fmt.Errorf("impersonate: lookup target: %w", err)
	}
	if !identity.IsActive {
		return Grant{}, ErrTargetUnavailable
	}

	memberships, err := s.memberships.FindMemberships(ctx, params.TargetID)
	if err != nil {
		return Grant{}, fmt.Errorf("impersonate: lookup memberships: %w", err)
	}
	membership, ok := usableMembership(memberships, params.TenantID)
	if !ok {
		return Grant{}, ErrTargetUnavailable
	}

	ticket := params.TicketRef
	if ticket == "" {
		ticket = uuid.NewString()
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)
	role := s.catalog.PrimaryRole(membership.Roles)

	err = s.recorder.Record(ctx, audit.Record{
		ActorID:  params.Actor.IdentityID,
		TenantID: params.TenantID,
		Action:   audit.ActionImpersonationStart,
		Entity:   "identity",
		EntityID: strconv.FormatInt(params.TargetID, 10),
		Origin:   params.Origin,
		After: map[string]any{
			"reason":     params.Reason,
			"ticket":     ticket,
			"role":       string(role),
			"expires_at": expiresAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		return Grant{}, fmt.Errorf("impersonate: record start: %w", err)
	}

	token, err := s.codec.Issue(auth.Claims{
		IdentityID: params.TargetID,
		TenantID:   params.TenantID,
		Role:       role,
		Version:    auth.CurrentTokenVersion,
		ExpiresAt:  expiresAt,
		Delegation: &rbac.Delegation{
			ActorID:   params.Actor.IdentityID,
			Reason:    params.Reason,
			Ticket:    ticket,
			StartedAt: now,
		},
	})
	if err != nil {
		return Grant{}, fmt.Errorf("impersonate: issue credential: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ImpersonationInc()
	}
	s.logger.Info("impersonation started",
		slog.Int64("actor_id", params.Actor.IdentityID),
		slog.Int64("target_id", params.TargetID),
		slog.Int64("tenant_id", params.TenantID),
		slog.String("ticket", ticket),
	)

	return Grant{
		Token:      token,
		Ticket:     ticket,
		TenantID:   params.TenantID,
		IdentityID: params.TargetID,
		Role:       role,
		ExpiresAt:  expiresAt,
	}, nil
}

// End records the end of a delegated session. The credential itself stays
// valid until expiry; the entry closes the audit trail, nothing more.
func (s *Service) End(ctx context.Context, principal rbac.Principal, origin string) error {
	if !principal.Impersonated() {
		return ErrNotImpersonating
	}
	after := map[string]any{
		"ticket": principal.Delegation.Ticket,
	}
	if !principal.Delegation.StartedAt.IsZero() {
		after["duration_ms"] = time.Since(principal.Delegation.StartedAt).Milliseconds()
	}
	err := s.recorder.Record(ctx, audit.Record{
		ActorID:  principal.Delegation.ActorID,
		TenantID: principal.TenantID,
		Action:   audit.ActionImpersonationEnd,
		Entity:   "identity",
		EntityID: strconv.FormatInt(principal.IdentityID, 10),
		Origin:   origin,
		After:    after,
	})
	if err != nil {
		return fmt.Errorf("impersonate: record end: %w", err)
	}
	s.logger.Info("impersonation ended",
		slog.Int64("actor_id", principal.Delegation.ActorID),
		slog.Int64("target_id", principal.IdentityID),
		slog.String("ticket", principal.Delegation.Ticket),
	)
	return nil
}

func usableMembership(memberships []tenants.Membership, tenantID int64) (tenants.Membership, bool) {
	for _, m := range memberships {
		if m.TenantID == tenantID && m.Usable() {
			return m, true
		}
	}
	return tenants.Membership{}, false
}
