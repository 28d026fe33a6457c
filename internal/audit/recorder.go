package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audited actions emitted by the authorization subsystem.
const (
	ActionLogin              = "LOGIN"
	ActionLogout             = "LOGOUT"
	ActionImpersonationStart = "IMPERSONATION_START"
	ActionImpersonationEnd   = "IMPERSONATION_END"
)

// Record is a single append-only audit entry. Entries are never updated or
// deleted, only archived.
type Record struct {
	ActorID  int64
	TenantID int64
	Action   string
	Entity   string
	EntityID string
	Before   map[string]any
	After    map[string]any
	Origin   string
	At       time.Time
}

// Recorder writes records into audit_logs.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Validate checks the record carries the mandatory fields.
func (r Record) Validate() error {
	if r.Action == "" || r.Entity == "" || r.EntityID == "" {
		return errors.New("audit: record requires action/entity/entity_id")
	}
	return nil
}

// Record persists the entry. Concurrent appends are safe: the write is a
// single INSERT, never an update.
func (l *Recorder) Record(ctx context.Context, rec Record) error {
	if l == nil || l.pool == nil {
		return errors.New("audit: recorder not initialised")
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	beforeJSON, err := json.Marshal(rec.Before)
	if err != nil {
		return err
	}
	afterJSON, err := json.Marshal(rec.After)
	if err != nil {
		return err
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, tenant_id, action, entity, entity_id, before, after, origin, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ActorID, rec.TenantID, rec.Action, rec.Entity, rec.EntityID, beforeJSON, afterJSON, rec.Origin, at)
	return err
}
