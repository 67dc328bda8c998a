package models

import "time"

// TransitionAudit records one accepted lifecycle event for the audit trail.
type TransitionAudit struct {
	ID         string           `db:"id" json:"id"`
	RequestID  string           `db:"request_id" json:"requestId"`
	OperatorID string           `db:"operator_id" json:"operatorId"`
	Action     string           `db:"action" json:"action"`
	FromStatus ForwardingStatus `db:"from_status" json:"fromStatus"`
	ToStatus   ForwardingStatus `db:"to_status" json:"toStatus"`
	Version    int64            `db:"version" json:"version"`
	Note       *string          `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
}

// Audit action names for events that are not workflow transitions.
const (
	AuditActionIntake      = "INTAKE"
	AuditActionLockRelease = "LOCK_RELEASE"
)
