package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/litigo-hq/litigo/internal/platform/db"
	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/shared"
)

// Repository provides read access to tenants and memberships.
type Repository interface {
	GetTenant(ctx context.Context, id int64) (Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	FindMemberships(ctx context.Context, identityID int64) ([]Membership, error)
	ListMembers(ctx context.Context, tenantID int64) ([]Membership, error)
}

// PGRepository implements Repository using PostgreSQL. Tenant and member
// listings run through the tenant gateway; the membership-resolution queries
// run before any principal exists and cannot take request scope, so they go
// straight to the pool.
type PGRepository struct {
	pool  *pgxpool.Pool
	scope *db.TenantScope
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, scope *db.TenantScope) *PGRepository {
	return &PGRepository{pool: pool, scope: scope}
}

// GetTenant fetches a tenant by id.
func (r *PGRepository) GetTenant(ctx context.Context, id int64) (Tenant, error) {
	var t Tenant
	err := r.scope.ForPrincipal(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`SELECT id, name, is_active, created_at, updated_at FROM tenants WHERE id = $1`, id).
			Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, shared.ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

// ListTenants returns all tenants ordered by id.
func (r *PGRepository) ListTenants(ctx context.Context) ([]Tenant, error) {
	var result []Tenant
	err := r.scope.ForPrincipal(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id, name, is_active, created_at, updated_at FROM tenants ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t Tenant
			if err := rows.Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
				return err
			}
			result = append(result, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

const membershipQuery = `
	SELECT m.id, m.identity_id, m.tenant_id, t.is_active, m.is_active, m.joined_at,
	       COALESCE(array_agg(mr.role ORDER BY mr.role) FILTER (WHERE mr.role IS NOT NULL), '{}')
	FROM memberships m
	JOIN tenants t ON t.id = m.tenant_id
	LEFT JOIN membership_roles mr ON mr.membership_id = m.id
	WHERE %s = $1
	GROUP BY m.id, m.identity_id, m.tenant_id, t.is_active, m.is_active, m.joined_at
	ORDER BY m.joined_at, m.id`

// FindMemberships returns the identity's memberships in a deterministic
// order (join date, then id): the resolver picks the first usable one, so
// the ordering is part of the authorization contract.
func (r *PGRepository) FindMemberships(ctx context.Context, identityID int64) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, membershipSQL("m.identity_id"), identityID)
	if err != nil {
		return nil, err
	}
	memberships, err := scanMemberships(rows)
	if err != nil {
		return nil, err
	}

	for i := range memberships {
		grants, err := r.customGrants(ctx, memberships[i].TenantID, memberships[i].Roles)
		if err != nil {
			return nil, err
		}
		memberships[i].CustomGrants = grants
	}
	return memberships, nil
}

// ListMembers returns every membership of a tenant ordered by join date.
func (r *PGRepository) ListMembers(ctx context.Context, tenantID int64) ([]Membership, error) {
	var memberships []Membership
	err := r.scope.ForPrincipal(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, membershipSQL("m.tenant_id"), tenantID)
		if err != nil {
			return err
		}
		memberships, err = scanMemberships(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

// customGrants loads tenant-specific permission overrides for the roles.
func (r *PGRepository) customGrants(ctx context.Context, tenantID int64, roles []rbac.Role) ([]rbac.Permission, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT permission FROM role_custom_grants WHERE tenant_id = $1 AND role = ANY($2) ORDER BY permission`,
		tenantID, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []rbac.Permission
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		grants = append(grants, rbac.Permission(p))
	}
	return grants, rows.Err()
}

func membershipSQL(column string) string {
	return fmt.Sprintf(membershipQuery, column)
}

func scanMemberships(rows pgx.Rows) ([]Membership, error) {
	defer rows.Close()
	var memberships []Membership
	for rows.Next() {
		var m Membership
		var roles []string
		if err := rows.Scan(&m.ID, &m.IdentityID, &m.TenantID, &m.TenantActive, &m.IsActive, &m.JoinedAt, &roles); err != nil {
			return nil, err
		}
		m.Roles = toRoles(roles)
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func toRoles(names []string) []rbac.Role {
	roles := make([]rbac.Role, 0, len(names))
	for _, name := range names {
		roles = append(roles, rbac.Role(name))
	}
	return roles
}

var _ Repository = (*PGRepository)(nil)
