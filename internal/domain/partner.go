package domain

import "time"

// PaymentType determines how a partner settles charges.
type PaymentType string

const (
	// PaymentPostPaid partners are invoiced after the fact; no credit check applies.
	PaymentPostPaid PaymentType = "post_paid"
	// PaymentDeposit partners prepay and spend against a credit limit.
	PaymentDeposit PaymentType = "deposit"
)

// Partner is the billing identity reselling certificate domains.
// Partner rows are owned by the identity provider; this core only reads them.
type Partner struct {
	ID           string
	Name         string
	PaymentType  PaymentType
	CreditLimit  int64 // minor units; meaningful only for deposit partners
	PricingClass string
	CreatedAt    time.Time
}
