package domain

import "time"

// Audit result statuses.
const (
	AuditSuccess = "success"
	AuditFailed  = "failed"
)

// AuditEntry is an immutable record of one state-changing call. Entries are
// append-only and never exposed for mutation through any engine API.
type AuditEntry struct {
	ID          string
	PrincipalID string
	TenantID    string
	Operation   string
	Summary     map[string]any
	Status      string
	Timestamp   time.Time
}
