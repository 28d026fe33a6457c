package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/litigo-hq/litigo/internal/platform/db"
)

// PGRepository reads audit_logs via PostgreSQL. Every query runs through the
// tenant gateway, so row policies see the caller's tenant context even if a
// filter is ever built wrong.
type PGRepository struct {
	scope *db.TenantScope
}

// NewRepository constructs a repository over the tenant gateway.
func NewRepository(scope *db.TenantScope) *PGRepository {
	return &PGRepository{scope: scope}
}

const timelineColumns = `occurred_at, actor_id, tenant_id, action, entity, entity_id, origin`

func timelineWhere(filters TimelineFilters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at < $%d", filters.To)
	}
	if filters.ActorID != 0 {
		add("actor_id = $%d", filters.ActorID)
	}
	if filters.TenantID != 0 {
		add("tenant_id = $%d", filters.TenantID)
	}
	if filters.Action != "" {
		add("action = $%d", strings.TrimSpace(filters.Action))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// TimelineWindow returns one page of entries ordered newest first.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	where, args := timelineWhere(filters)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		timelineColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	return r.queryRows(ctx, query, args)
}

// TimelineAll returns every matching entry ordered newest first.
func (r *PGRepository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	where, args := timelineWhere(filters)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY occurred_at DESC, id DESC`, timelineColumns, where)
	return r.queryRows(ctx, query, args)
}

func (r *PGRepository) queryRows(ctx context.Context, query string, args []any) ([]TimelineRow, error) {
	var result []TimelineRow
	err := r.scope.ForPrincipal(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var row TimelineRow
			if err := rows.Scan(&row.At, &row.ActorID, &row.TenantID, &row.Action, &row.Entity, &row.EntityID, &row.Origin); err != nil {
				return err
			}
			result = append(result, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Archive moves entries older than the cutoff into audit_logs_archive and
// removes them from the hot table. The copy and delete run in one statement
// so a crash cannot drop entries. Retention is a platform concern and runs
// outside any request, so the scope is the explicit platform mode.
func (r *PGRepository) Archive(ctx context.Context, olderThan int) (int64, error) {
	var moved int64
	err := r.scope.WithPlatformScope(ctx, "platform_admin", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			WITH moved AS (
				DELETE FROM audit_logs
				WHERE occurred_at < NOW() - make_interval(days => $1)
				RETURNING actor_id, tenant_id, action, entity, entity_id, before, after, origin, occurred_at
			)
			INSERT INTO audit_logs_archive (actor_id, tenant_id, action, entity, entity_id, before, after, origin, occurred_at)
			SELECT * FROM moved`, olderThan)
		if err != nil {
			return err
		}
		moved = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

var _ Repository = (*PGRepository)(nil)
