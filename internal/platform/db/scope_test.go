package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/shared"
)

type fakeTx struct {
	pgx.Tx

	events     []string
	execErr    error
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	t.events = append(t.events, fmt.Sprintf("exec %s %v", sql, args))
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	t.events = append(t.events, "commit")
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakePool struct {
	mu       sync.Mutex
	beginErr error
	txs      []*fakeTx
	prepare  func(*fakeTx)
}

func (p *fakePool) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	tx := &fakeTx{}
	if p.prepare != nil {
		p.prepare(tx)
	}
	p.mu.Lock()
	p.txs = append(p.txs, tx)
	p.mu.Unlock()
	return tx, nil
}

func TestWithTenantRefusesEmptyScope(t *testing.T) {
	pool := &fakePool{}
	scope := NewTenantScope(pool, nil)

	err := scope.WithTenant(context.Background(), 0, "owner", func(pgx.Tx) error {
		t.Fatal("unit of work must not run without tenant scope")
		return nil
	})

	require.ErrorIs(t, err, shared.ErrNoTenantScope)
	require.Empty(t, pool.txs, "no transaction may be opened without a tenant")
}

func TestWithTenantSetsScopeBeforeWork(t *testing.T) {
	pool := &fakePool{}
	scope := NewTenantScope(pool, nil)

	err := scope.WithTenant(context.Background(), 7, "owner", func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "SELECT 1")
		return err
	})
	require.NoError(t, err)
	require.Len(t, pool.txs, 1)

	tx := pool.txs[0]
	require.Len(t, tx.events, 3)
	require.Contains(t, tx.events[0], "set_config")
	require.Contains(t, tx.events[0], "[7 owner]")
	require.Contains(t, tx.events[1], "SELECT 1")
	require.Equal(t, "commit", tx.events[2])
	require.False(t, tx.rolledBack)
}

func TestWithTenantRollsBackOnError(t *testing.T) {
	pool := &fakePool{}
	scope := NewTenantScope(pool, nil)

	boom := errors.New("boom")
	err := scope.WithTenant(context.Background(), 7, "owner", func(pgx.Tx) error {
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.Len(t, pool.txs, 1)
	require.False(t, pool.txs[0].committed)
	require.True(t, pool.txs[0].rolledBack)
}

func TestRowPolicyDenialBecomesIsolationError(t *testing.T) {
	pool := &fakePool{}
	scope := NewTenantScope(pool, nil)

	err := scope.WithTenant(context.Background(), 7, "owner", func(pgx.Tx) error {
		return &pgconn.PgError{Code: "42501", Message: "new row violates row-level security policy"}
	})

	require.ErrorIs(t, err, shared.ErrTenantIsolation)
	require.NotContains(t, err.Error(), "row-level security", "database detail must not surface")
}

func TestPlatformScopeIsExplicit(t *testing.T) {
	pool := &fakePool{}
	scope := NewTenantScope(pool, nil)

	err := scope.WithPlatformScope(context.Background(), "platform_admin", func(pgx.Tx) error {
		return nil
	})
	require.NoError(t, err)
	require.Len(t, pool.txs, 1)
	require.Contains(t, pool.txs[0].events[0], "[ platform_admin]", "platform mode carries the empty tenant sentinel")
}

func TestForPrincipalDerivesScopeFromContext(t *testing.T) {
	pool := &fakePool{}
	scope := NewTenantScope(pool, nil)

	member := shared.ContextWithPrincipal(context.Background(), rbac.Principal{
		IdentityID: 3, TenantID: 7, Role: rbac.RoleOwner, Active: true,
	})
	require.NoError(t, scope.ForPrincipal(member, func(pgx.Tx) error { return nil }))

	platform := shared.ContextWithPrincipal(context.Background(), rbac.Principal{
		IdentityID: 1, Role: rbac.RolePlatformAdmin, Active: true,
	})
	require.NoError(t, scope.ForPrincipal(platform, func(pgx.Tx) error { return nil }))

	require.NoError(t, scope.ForPrincipal(context.Background(), func(pgx.Tx) error { return nil }))

	require.Len(t, pool.txs, 3)
	require.Contains(t, pool.txs[0].events[0], "[7 owner]")
	require.Contains(t, pool.txs[1].events[0], "[ platform_admin]")
	require.Contains(t, pool.txs[2].events[0], "[ platform_admin]",
		"background work with no principal runs platform mode")
}

func TestConcurrentScopesNeverShareContext(t *testing.T) {
	pool := &fakePool{}
	scope := NewTenantScope(pool, nil)

	var g errgroup.Group
	for _, tenant := range []int64{1, 2} {
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				err := scope.WithTenant(context.Background(), tenant, "owner", func(tx pgx.Tx) error {
					_, err := tx.Exec(context.Background(), "work", tenant)
					return err
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// Every unit of work owns its transaction for its full lifetime: the
	// tenant pushed at the start must be the tenant of every statement run
	// inside it, with no foreign events interleaved.
	require.Len(t, pool.txs, 100)
	for _, tx := range pool.txs {
		require.Len(t, tx.events, 3)
		var tenant string
		switch {
		case strings.Contains(tx.events[0], "[1 owner]"):
			tenant = "1"
		case strings.Contains(tx.events[0], "[2 owner]"):
			tenant = "2"
		}
		require.NotEmpty(t, tenant, "scope statement must carry one of the two tenants")
		require.Contains(t, tx.events[1], "["+tenant+"]")
		require.Equal(t, "commit", tx.events[2])
	}
}
