package domain

import "time"

// AuditAction identifies the kind of state-changing action recorded.
type AuditAction string

const (
	AuditAddDomain          AuditAction = "add_domain"
	AuditRemoveDomain       AuditAction = "remove_domain"
	AuditRefundDomain       AuditAction = "refund_domain"
	AuditRefundFailed       AuditAction = "refund_failed"
	AuditProviderRemoveFail AuditAction = "provider_remove_failed"
	AuditAccountActivated   AuditAction = "account_activated"
	AuditAccountReactivated AuditAction = "account_reactivated"
	AuditAccountDeactivated AuditAction = "account_deactivated"
	AuditAbuseFlagged       AuditAction = "refund_abuse_flagged"
)

// AuditSeverity ranks entries for review queues.
type AuditSeverity string

const (
	SeverityInfo AuditSeverity = "info"
	// SeverityHigh flags entries that need manual review (abuse patterns).
	SeverityHigh AuditSeverity = "high"
	// SeverityCritical flags ledger inconsistencies needing manual reconciliation.
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry is an append-only record of a state-changing action.
// Entries are never mutated or deleted.
type AuditEntry struct {
	ID         string
	Actor      string
	Action     AuditAction
	TargetType string // "domain" or "account"
	TargetID   string
	Severity   AuditSeverity
	Details    map[string]any
	CreatedAt  time.Time
}
