package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/shared"
)

// SQLSTATE raised by row-level security when a statement touches rows the
// session's tenant context does not permit.
const insufficientPrivilege = "42501"

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TenantScope runs units of work inside a database session carrying the
// caller's tenant context. The tenant id and role are pushed with SET LOCAL
// semantics, so they exist only between BEGIN and COMMIT/ROLLBACK of the
// borrowed connection and can never leak into another request: a concurrent
// caller always gets its own transaction.
//
// Row policies read current_setting('app.tenant_id'); with FORCE ROW LEVEL
// SECURITY on every tenant table, an unset or empty tenant id matches no
// rows. The gateway still refuses to run tenant work without a tenant id so
// the failure is loud rather than an empty result set.
type TenantScope struct {
	pool   Beginner
	logger *slog.Logger
}

// NewTenantScope constructs the gateway over a pool.
func NewTenantScope(pool Beginner, logger *slog.Logger) *TenantScope {
	return &TenantScope{pool: pool, logger: logger}
}

// WithTenant executes fn within a transaction scoped to the tenant. An empty
// tenant id fails fast instead of defaulting to an unscoped session.
func (s *TenantScope) WithTenant(ctx context.Context, tenantID int64, role string, fn func(pgx.Tx) error) error {
	if tenantID == 0 {
		return shared.ErrNoTenantScope
	}
	return s.run(ctx, strconv.FormatInt(tenantID, 10), role, fn)
}

// WithPlatformScope executes fn with no tenant filter. This mode must be
// requested deliberately; guards ensure only platform-authorized callers
// reach it.
func (s *TenantScope) WithPlatformScope(ctx context.Context, role string, fn func(pgx.Tx) error) error {
	return s.run(ctx, "", role, fn)
}

// ForPrincipal runs fn in the scope the request principal grants: tenant
// members get their own tenant, platform operators and background work with
// no principal in the context get the explicit platform mode.
func (s *TenantScope) ForPrincipal(ctx context.Context, fn func(pgx.Tx) error) error {
	if principal, ok := shared.PrincipalFromContext(ctx); ok && !principal.IsPlatform() {
		return s.WithTenant(ctx, principal.TenantID, string(principal.Role), fn)
	}
	return s.WithPlatformScope(ctx, string(rbac.RolePlatformAdmin), fn)
}

func (s *TenantScope) run(ctx context.Context, tenantID, role string, fn func(pgx.Tx) error) error {
	err := WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT set_config('app.tenant_id', $1, true), set_config('app.role', $2, true)`,
			tenantID, role); err != nil {
			return fmt.Errorf("platform/db: set tenant scope: %w", err)
		}
		return fn(tx)
	})
	if err != nil {
		return s.classify(ctx, tenantID, err)
	}
	return nil
}

// classify converts row-policy rejections into the isolation sentinel and
// records them as security events. The database message is logged, never
// returned to the caller.
func (s *TenantScope) classify(ctx context.Context, tenantID string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == insufficientPrivilege {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "tenant isolation violation",
				slog.String("tenant_id", tenantID),
				slog.String("sqlstate", pgErr.Code),
				slog.String("message", pgErr.Message),
			)
		}
		return shared.ErrTenantIsolation
	}
	return err
}
