package registry

import (
	"time"

	"go.uber.org/zap"
)

type AuditAction string

const (
	AuditAdd      AuditAction = "add"
	AuditRemove   AuditAction = "remove"
	AuditUpdate   AuditAction = "update"
	AuditCommit   AuditAction = "commit"
	AuditRollback AuditAction = "rollback"
	AuditFlush    AuditAction = "flush"
)

// AuditEntry records one registry mutation.
type AuditEntry struct {
	Time   time.Time   `json:"time"`
	Action AuditAction `json:"action"`
	Claims []int64     `json:"claims,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// AuditLogger receives audit entries. It is called with the registry lock held and
// must not call back into the registry.
type AuditLogger interface {
	WriteAudit(e AuditEntry) error
}

func (r *Registry) auditLocked(action AuditAction, ids []int64, reason string) {
	if r.audit == nil {
		return
	}
	e := AuditEntry{Time: r.now().UTC(), Action: action, Claims: ids, Reason: reason}
	if err := r.audit.WriteAudit(e); err != nil {
		r.log.Warn("audit write failed", zap.String("action", string(action)), zap.Error(err))
	}
}
