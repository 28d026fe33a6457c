package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/litigo-hq/litigo/internal/platform/db"
	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/shared"
)

type scopeTx struct {
	pgx.Tx

	statements []string
	args       [][]any
}

func (t *scopeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.statements = append(t.statements, sql)
	t.args = append(t.args, args)
	return pgconn.NewCommandTag("DELETE 4"), nil
}

func (t *scopeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.statements = append(t.statements, sql)
	t.args = append(t.args, args)
	return emptyRows{}, nil
}

func (t *scopeTx) Commit(ctx context.Context) error   { return nil }
func (t *scopeTx) Rollback(ctx context.Context) error { return nil }

type emptyRows struct{ pgx.Rows }

func (emptyRows) Next() bool { return false }
func (emptyRows) Err() error { return nil }
func (emptyRows) Close()     {}

type scopePool struct {
	mu  sync.Mutex
	txs []*scopeTx
}

func (p *scopePool) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	tx := &scopeTx{}
	p.mu.Lock()
	p.txs = append(p.txs, tx)
	p.mu.Unlock()
	return tx, nil
}

func TestTimelineRunsInCallerTenantScope(t *testing.T) {
	pool := &scopePool{}
	repo := NewRepository(db.NewTenantScope(pool, nil))
	ctx := shared.ContextWithPrincipal(context.Background(), rbac.Principal{
		IdentityID: 3, TenantID: 7, Role: rbac.RoleOwner, Active: true,
	})

	_, err := repo.TimelineWindow(ctx, TimelineFilters{}, 20, 0)
	require.NoError(t, err)
	require.Len(t, pool.txs, 1)

	tx := pool.txs[0]
	require.Len(t, tx.statements, 2)
	require.Contains(t, tx.statements[0], "set_config")
	require.Equal(t, []any{"7", "owner"}, tx.args[0], "tenant context pushed before the query")
	require.Contains(t, tx.statements[1], "FROM audit_logs")
}

func TestTimelinePlatformCallersRunPlatformScope(t *testing.T) {
	pool := &scopePool{}
	repo := NewRepository(db.NewTenantScope(pool, nil))
	ctx := shared.ContextWithPrincipal(context.Background(), rbac.Principal{
		IdentityID: 1, Role: rbac.RolePlatformAdmin, Active: true,
	})

	_, err := repo.TimelineAll(ctx, TimelineFilters{TenantID: 7})
	require.NoError(t, err)
	require.Len(t, pool.txs, 1)
	require.Equal(t, []any{"", "platform_admin"}, pool.txs[0].args[0])
}

func TestArchiveRunsInPlatformScope(t *testing.T) {
	pool := &scopePool{}
	repo := NewRepository(db.NewTenantScope(pool, nil))

	moved, err := repo.Archive(context.Background(), 365)
	require.NoError(t, err)
	require.Equal(t, int64(4), moved)
	require.Len(t, pool.txs, 1)

	tx := pool.txs[0]
	require.Contains(t, tx.statements[0], "set_config")
	require.Equal(t, []any{"", "platform_admin"}, tx.args[0])
	require.Contains(t, tx.statements[1], "audit_logs_archive")
}
