package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/litigo-hq/litigo/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	FindIdentityByID(ctx context.Context, id int64) (*Identity, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const identityColumns = `id, email, display_name, password_hash, is_active, is_platform, created_at, updated_at`

// FindIdentityByEmail fetches an identity by email, case-insensitively.
func (r *PGRepository) FindIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	return r.scanIdentity(r.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE lower(email) = lower($1)`, email))
}

// FindIdentityByID fetches an identity by id.
func (r *PGRepository) FindIdentityByID(ctx context.Context, id int64) (*Identity, error) {
	return r.scanIdentity(r.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id))
}

func (r *PGRepository) scanIdentity(row pgx.Row) (*Identity, error) {
	var identity Identity
	err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.DisplayName,
		&identity.PasswordHash,
		&identity.IsActive,
		&identity.IsPlatform,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &identity, nil
}

var _ Repository = (*PGRepository)(nil)
