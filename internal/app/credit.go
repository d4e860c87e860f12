package app

import (
	"context"
	"fmt"

	"github.com/croftlabs/certbill/internal/domain"
)

// CreditGuard gates proposed charges against a partner's available credit.
//
// The check is a soft gate: it evaluates a snapshot of the ledger and takes
// no lock, so concurrent batches against the same deposit partner can both
// pass and overshoot the limit. That overshoot tolerance is documented
// business policy, not an oversight to fix here.
type CreditGuard struct {
	store domain.LedgerStore
}

// NewCreditGuard creates a guard over the given ledger.
func NewCreditGuard(store domain.LedgerStore) *CreditGuard {
	return &CreditGuard{store: store}
}

// CreditStatus describes a partner's current credit position.
type CreditStatus struct {
	// Unlimited is true for post-paid partners; Limit/Used/Available are
	// zero and meaningless in that case.
	Unlimited bool
	Limit     int64
	Used      int64
	Available int64
}

// Authorize accepts or rejects a proposed charge. Post-paid partners are
// always allowed (trust-based billing, no limit check). Deposit partners are
// rejected with a *domain.CreditError carrying the shortfall when the charge
// exceeds available credit.
func (g *CreditGuard) Authorize(ctx context.Context, partner domain.Partner, proposed int64) error {
	if partner.PaymentType == domain.PaymentPostPaid {
		return nil
	}

	used, err := g.store.PartnerUsage(ctx, partner.ID)
	if err != nil {
		return fmt.Errorf("computing partner usage: %w", err)
	}

	available := partner.CreditLimit - used
	if proposed > available {
		return &domain.CreditError{Proposed: proposed, Available: available}
	}

	return nil
}

// Status returns the partner's credit position for display.
func (g *CreditGuard) Status(ctx context.Context, partnerID string) (CreditStatus, error) {
	partner, err := g.store.GetPartner(ctx, partnerID)
	if err != nil {
		return CreditStatus{}, err
	}

	if partner.PaymentType == domain.PaymentPostPaid {
		return CreditStatus{Unlimited: true}, nil
	}

	used, err := g.store.PartnerUsage(ctx, partner.ID)
	if err != nil {
		return CreditStatus{}, fmt.Errorf("computing partner usage: %w", err)
	}

	return CreditStatus{
		Limit:     partner.CreditLimit,
		Used:      used,
		Available: partner.CreditLimit - used,
	}, nil
}
