package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/croftlabs/certbill/internal/domain"
)

// RefundWindow is how long after addition a removed domain is refunded.
// The boundary is inclusive: a domain removed exactly RefundWindow after
// being added still gets its money back.
const RefundWindow = 30 * 24 * time.Hour

// RemovalResult reports the outcome of a domain removal.
type RemovalResult struct {
	Refunded            bool
	DaysSinceAdded      int
	RefundTransactionID string
}

// RefundEngine validates and executes the refund-on-removal path.
//
// Once the preconditions pass, the removal itself is unconditional: "domain
// removed" and "refund issued" are eventually consistent, and a failed
// refund insert is escalated as a critical audit entry for manual
// reconciliation instead of rolling the removal back.
type RefundEngine struct {
	store       domain.LedgerStore
	provisioner domain.Provisioner
	lifecycle   *AccountLifecycle
	publisher   domain.EventPublisher
	log         *slog.Logger
	now         func() time.Time
}

// NewRefundEngine creates the engine with the given collaborators.
func NewRefundEngine(
	store domain.LedgerStore,
	provisioner domain.Provisioner,
	lifecycle *AccountLifecycle,
	publisher domain.EventPublisher,
	log *slog.Logger,
) *RefundEngine {
	return &RefundEngine{
		store:       store,
		provisioner: provisioner,
		lifecycle:   lifecycle,
		publisher:   publisher,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Remove removes a domain, refunding its charge when the removal falls
// inside the refund window. Preconditions are checked in order before any
// mutation; the first failing check aborts with no side effects.
func (e *RefundEngine) Remove(ctx context.Context, actor, domainID string) (RemovalResult, error) {
	d, err := e.store.GetDomain(ctx, domainID)
	if err != nil {
		return RemovalResult{}, err
	}
	account, err := e.store.GetAccount(ctx, d.AccountID)
	if err != nil {
		return RemovalResult{}, err
	}

	// A domain with no add_domain transaction is ledger corruption, not a
	// business rejection.
	original, err := e.store.FindTransactionByDomainAndType(ctx, d.ID, domain.TxAddDomain)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return RemovalResult{}, &domain.IntegrityError{
				Reason: fmt.Sprintf("domain %s has no add_domain transaction", d.ID),
			}
		}
		return RemovalResult{}, fmt.Errorf("finding original transaction: %w", err)
	}

	if original.Status == domain.TxPendingAPI || original.Status == domain.TxFailed {
		return RemovalResult{}, domain.ErrNotSettled
	}

	now := e.now()
	withinWindow := now.Sub(d.AddedAt) <= RefundWindow
	days := int(now.Sub(d.AddedAt).Hours() / 24)

	if withinWindow {
		refund, err := e.store.FindTransactionByDomainAndType(ctx, d.ID, domain.TxRefund)
		switch {
		case err == nil && refund.Status == domain.TxSuccess:
			return RemovalResult{}, domain.ErrAlreadyRefunded
		case err != nil && !errors.Is(err, domain.ErrTransactionNotFound):
			return RemovalResult{}, fmt.Errorf("checking for prior refund: %w", err)
		}
	}

	if d.Status == domain.DomainRemoved {
		return RemovalResult{}, domain.ErrAlreadyRemoved
	}

	// Preconditions hold. Tell the provider first, best effort: the ledger
	// is the system of record for billing, and a provider-side miss is an
	// ops follow-up, not a reason to keep charging the partner.
	if err := e.provisioner.RemoveDomain(ctx, account.ExternalID, d.Name); err != nil {
		e.log.WarnContext(ctx, "provider-side domain removal failed",
			"domain", d.Name, "account_id", account.ID, "error", err)
		e.audit(ctx, domain.AuditEntry{
			Actor:      actor,
			Action:     domain.AuditProviderRemoveFail,
			TargetType: "domain",
			TargetID:   d.ID,
			Severity:   domain.SeverityInfo,
			Details:    map[string]any{"domain": d.Name, "error": err.Error()},
		})
	}

	if err := e.store.MarkDomainRemoved(ctx, d.ID, now); err != nil {
		return RemovalResult{}, fmt.Errorf("marking domain removed: %w", err)
	}

	result := RemovalResult{DaysSinceAdded: days}
	if withinWindow && d.PriceCharged > 0 {
		result = e.issueRefund(ctx, actor, d, original, now, days)
	} else {
		e.audit(ctx, domain.AuditEntry{
			Actor:      actor,
			Action:     domain.AuditRemoveDomain,
			TargetType: "domain",
			TargetID:   d.ID,
			Severity:   domain.SeverityInfo,
			Details: map[string]any{
				"domain":           d.Name,
				"days_since_added": days,
				"refund_amount":    int64(0),
			},
		})
		e.publish(ctx, domain.EventDomainRemoved, domain.EventRef{
			AccountID: d.AccountID, DomainID: d.ID, Domain: d.Name,
		})
	}

	if err := e.lifecycle.HandleRemoval(ctx, actor, d.AccountID); err != nil {
		e.log.ErrorContext(ctx, "deriving account status after removal",
			"account_id", d.AccountID, "error", err)
	}

	return result, nil
}

// issueRefund writes the refund transaction, flips the original to refunded
// and links it back onto the domain. An insert failure leaves the removal in
// place and escalates via a critical audit entry.
func (e *RefundEngine) issueRefund(ctx context.Context, actor string, d domain.Domain, original domain.Transaction, now time.Time, days int) RemovalResult {
	refund := domain.Transaction{
		ID:                   newID(),
		DomainID:             d.ID,
		AccountID:            d.AccountID,
		PartnerID:            original.PartnerID,
		Type:                 domain.TxRefund,
		Status:               domain.TxSuccess,
		Amount:               d.PriceCharged,
		Description:          "refund for removal of " + d.Name,
		OrderRef:             original.OrderRef,
		RelatedTransactionID: original.ID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := e.store.InsertTransaction(ctx, refund); err != nil {
		e.log.ErrorContext(ctx, "refund transaction insert failed, domain stays removed",
			"domain_id", d.ID, "amount", d.PriceCharged, "error", err)
		e.audit(ctx, domain.AuditEntry{
			Actor:      actor,
			Action:     domain.AuditRefundFailed,
			TargetType: "domain",
			TargetID:   d.ID,
			Severity:   domain.SeverityCritical,
			Details: map[string]any{
				"domain":                  d.Name,
				"refund_amount":           d.PriceCharged,
				"original_transaction_id": original.ID,
				"error":                   err.Error(),
			},
		})
		return RemovalResult{DaysSinceAdded: days}
	}

	if err := e.store.UpdateTransactionStatus(ctx, original.ID, domain.TxRefunded, "reversed by "+refund.ID); err != nil {
		e.log.ErrorContext(ctx, "flipping original transaction to refunded",
			"transaction_id", original.ID, "error", err)
	}
	if err := e.store.LinkDomainRefund(ctx, d.ID, refund.ID); err != nil {
		e.log.ErrorContext(ctx, "linking refund onto domain",
			"domain_id", d.ID, "error", err)
	}

	e.audit(ctx, domain.AuditEntry{
		Actor:      actor,
		Action:     domain.AuditRefundDomain,
		TargetType: "domain",
		TargetID:   d.ID,
		Severity:   domain.SeverityInfo,
		Details: map[string]any{
			"domain":                  d.Name,
			"days_since_added":        days,
			"refund_amount":           d.PriceCharged,
			"refund_transaction_id":   refund.ID,
			"original_transaction_id": original.ID,
		},
	})
	e.publish(ctx, domain.EventDomainRefunded, domain.EventRef{
		AccountID: d.AccountID, DomainID: d.ID, Domain: d.Name,
	})

	return RemovalResult{Refunded: true, DaysSinceAdded: days, RefundTransactionID: refund.ID}
}

func (e *RefundEngine) audit(ctx context.Context, entry domain.AuditEntry) {
	entry.ID = newID()
	entry.CreatedAt = e.now()
	if err := e.store.AppendAudit(ctx, entry); err != nil {
		e.log.ErrorContext(ctx, "appending audit entry",
			"action", string(entry.Action), "target_id", entry.TargetID, "error", err)
	}
}

func (e *RefundEngine) publish(ctx context.Context, event domain.Event, ref domain.EventRef) {
	if err := e.publisher.Publish(ctx, event, ref); err != nil {
		e.log.WarnContext(ctx, "publishing removal event",
			"event", string(event), "domain_id", ref.DomainID, "error", err)
	}
}
