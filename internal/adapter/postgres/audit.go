package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"adcp-engine/internal/core/domain"
)

// AuditLog implements port.AuditRecorder over the audit_log table. Entries
// are append-only; no engine API reads them back for mutation.
type AuditLog struct {
	pool *pgxpool.Pool
}

// NewAuditLog returns an audit recorder backed by the pool.
func NewAuditLog(pool *pgxpool.Pool) *AuditLog {
	return &AuditLog{pool: pool}
}

// Record appends one audit entry. The caller treats a failure as a failure
// of the triggering operation, so no state change goes unaudited.
func (l *AuditLog) Record(ctx context.Context, entry domain.AuditEntry) error {
	summary, err := json.Marshal(entry.Summary)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_log
		(id, principal_id, tenant_id, operation, summary, status, ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.ID, entry.PrincipalID, entry.TenantID, entry.Operation,
		summary, entry.Status, entry.Timestamp)
	return err
}
