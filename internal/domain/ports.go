package domain

import (
	"context"
	"time"
)

// LedgerStore is the persistence contract for partner balances, accounts,
// domains, transactions and the audit trail. It is the only shared mutable
// resource; callers apply mutations in the documented saga order and rely on
// row-level consistency only.
type LedgerStore interface {
	GetPartner(ctx context.Context, id string) (Partner, error)

	GetAccount(ctx context.Context, id string) (Account, error)
	UpdateAccount(ctx context.Context, account Account) error
	CountActiveDomains(ctx context.Context, accountID string) (int, error)

	InsertDomain(ctx context.Context, d Domain) error
	GetDomain(ctx context.Context, id string) (Domain, error)
	UpdateDomainStatus(ctx context.Context, id string, status DomainStatus) error
	MarkDomainActive(ctx context.Context, id, orderRef string) error
	MarkDomainRemoved(ctx context.Context, id string, removedAt time.Time) error
	LinkDomainRefund(ctx context.Context, domainID, transactionID string) error
	// DeleteDomain physically removes a row. Reserved for cleaning up a
	// reservation whose transaction insert failed; removal in every other
	// sense is a status transition.
	DeleteDomain(ctx context.Context, id string) error

	InsertTransaction(ctx context.Context, tx Transaction) error
	UpdateTransactionStatus(ctx context.Context, id string, status TransactionStatus, description string) error
	// SettleTransaction promotes a pending_api reservation to success and
	// records the provider's order reference.
	SettleTransaction(ctx context.Context, id, orderRef string) error
	FindTransactionByDomainAndType(ctx context.Context, domainID string, txType TransactionType) (Transaction, error)

	// PartnerUsage returns charged minus refunded amounts for a partner:
	// Σ add_domain(success, pending_api) − Σ refund(success).
	PartnerUsage(ctx context.Context, partnerID string) (int64, error)
	CountSuccessfulRefunds(ctx context.Context, accountID string, since time.Time) (int, error)

	// FindPrice resolves a price tier; ErrPriceTierNotFound triggers the
	// fixed-default fallback.
	FindPrice(ctx context.Context, pricingClass string, certType CertificateType, wildcard bool) (int64, error)

	AppendAudit(ctx context.Context, entry AuditEntry) error
}

// ProvisionResult is the provider's acknowledgement of a domain addition.
type ProvisionResult struct {
	OrderRef string
}

// Provisioner is the contract for the external CA provisioning API.
// Implementations own timeouts, retry-with-backoff and the translation of
// raw provider payloads into *ProviderError.
type Provisioner interface {
	// AddDomain registers a domain under a provider account. The
	// idempotency token (the reservation's transaction id) makes retries
	// safe on the provider side.
	AddDomain(ctx context.Context, accountExternalID, domainName, idempotencyToken string) (ProvisionResult, error)
	RemoveDomain(ctx context.Context, accountExternalID, domainName string) error
}

// TransitionValidator checks whether an event is allowed from the current
// account status and returns the destination status.
type TransitionValidator interface {
	Apply(ctx context.Context, current AccountStatus, event Event) (AccountStatus, error)
}

// EventRef identifies what an emitted event is about.
type EventRef struct {
	AccountID string
	DomainID  string
	Domain    string
	Detail    string
}

// EventPublisher defines the contract for emitting lifecycle events to
// downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, ref EventRef) error
}
