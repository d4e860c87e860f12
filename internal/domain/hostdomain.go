package domain

import "time"

// DomainType distinguishes single-host from wildcard coverage.
type DomainType string

const (
	DomainSingle   DomainType = "single"
	DomainWildcard DomainType = "wildcard"
)

// DomainStatus represents the provisioning state of a domain.
// Removal is a status transition, never a physical delete, so the audit
// trail stays complete.
type DomainStatus string

const (
	DomainPending DomainStatus = "pending"
	DomainActive  DomainStatus = "active"
	DomainFailed  DomainStatus = "failed"
	DomainRemoved DomainStatus = "removed"
)

// Domain is a named host provisioned under an Account.
// RemovedAt is set iff Status is "removed"; RefundTransactionID is set only
// when a linked refund transaction exists.
type Domain struct {
	ID                  string
	AccountID           string
	Name                string
	Type                DomainType
	Status              DomainStatus
	PriceCharged        int64 // minor units, resolved once at submission
	OrderRef            string
	AddedAt             time.Time
	RemovedAt           *time.Time
	RefundTransactionID string
}
