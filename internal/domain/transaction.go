package domain

import "time"

// TransactionType is the business reason for a ledger entry.
type TransactionType string

const (
	TxAddDomain TransactionType = "add_domain"
	TxRefund    TransactionType = "refund"
)

// TransactionStatus tracks a ledger entry through settlement.
type TransactionStatus string

const (
	// TxPendingAPI marks a reservation created ahead of the provider call.
	TxPendingAPI TransactionStatus = "pending_api"
	TxSuccess    TransactionStatus = "success"
	TxFailed     TransactionStatus = "failed"
	// TxRefunded is terminal: the entry has been reversed by a linked refund.
	TxRefunded TransactionStatus = "refunded"
)

// Transaction is a ledger entry, immutable once settled. At most one
// add_domain transaction exists per domain and at most one successful
// refund; a refund carries RelatedTransactionID pointing at the add_domain
// entry it reverses.
type Transaction struct {
	ID                   string
	DomainID             string
	AccountID            string
	PartnerID            string
	Type                 TransactionType
	Status               TransactionStatus
	Amount               int64 // minor units
	Description          string
	OrderRef             string // provider order reference, for reconciliation
	RelatedTransactionID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
