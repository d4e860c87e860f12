package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrPartnerNotFound     = errors.New("partner not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrDomainNotFound      = errors.New("domain not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPriceTierNotFound   = errors.New("price tier not found")

	// ErrNotSettled rejects removal of a domain whose add_domain
	// transaction never settled; a failed reservation has nothing to refund.
	ErrNotSettled = errors.New("original transaction is not settled")
	// ErrAlreadyRefunded rejects a second refund attempt for a domain.
	ErrAlreadyRefunded = errors.New("domain already refunded")
	// ErrAlreadyRemoved rejects re-removal of a removed domain.
	ErrAlreadyRemoved = errors.New("domain already removed")
)

// ValidationError is returned for malformed input, before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CreditError is returned when a deposit partner's available credit cannot
// cover a proposed charge. No write has occurred.
type CreditError struct {
	Proposed  int64
	Available int64
}

// Shortfall is the amount by which the proposed charge exceeds available credit.
func (e *CreditError) Shortfall() int64 { return e.Proposed - e.Available }

func (e *CreditError) Error() string {
	return fmt.Sprintf("insufficient credit: proposed %d exceeds available %d (short %d)",
		e.Proposed, e.Available, e.Shortfall())
}

// TransitionError is returned when an account state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current AccountStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// IntegrityError signals ledger corruption (e.g. a domain without its
// add_domain transaction). It is surfaced hard, never swallowed.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "ledger integrity: " + e.Reason
}

// ProviderErrorKind is the closed taxonomy of CA-side failures. The
// provisioning adapter translates raw provider payloads into exactly one of
// these; nothing above the adapter ever inspects a raw payload.
type ProviderErrorKind string

const (
	// ProviderAlreadyExists is reclassified as success by the adapter and
	// never surfaces to the saga.
	ProviderAlreadyExists       ProviderErrorKind = "already_exists"
	ProviderRateLimited         ProviderErrorKind = "rate_limited"
	ProviderServerError         ProviderErrorKind = "server_error"
	ProviderUnauthorized        ProviderErrorKind = "unauthorized"
	ProviderMalformed           ProviderErrorKind = "malformed"
	ProviderSubscriptionExpired ProviderErrorKind = "subscription_expired"
	ProviderTimeout             ProviderErrorKind = "timeout"
)

// Retriable reports whether a call failing with this kind may be retried.
// Validation-class rejections never are.
func (k ProviderErrorKind) Retriable() bool {
	switch k {
	case ProviderRateLimited, ProviderServerError, ProviderTimeout:
		return true
	default:
		return false
	}
}

// ProviderError is a classified failure from the external CA API.
type ProviderError struct {
	Kind    ProviderErrorKind
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Kind, e.Message)
}
