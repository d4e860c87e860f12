package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/croftlabs/certbill/internal/domain"
)

// DomainRequest is one candidate domain in a submitted batch.
type DomainRequest struct {
	Name string
	Type domain.DomainType
}

// DomainResult is the per-domain outcome of a batch. Failures are surfaced
// here without aborting sibling domains.
type DomainResult struct {
	Domain  string
	Success bool
	Error   string
}

// BatchResult aggregates a batch submission.
type BatchResult struct {
	Results   []DomainResult
	Succeeded int
	Failed    int
}

// ProvisioningSaga drives the reserve → call-provider → reconcile sequence
// for each domain in a batch. Domains are processed independently and
// sequentially; every domain lands in active or failed with the ledger in a
// matching state, and a failure in one never aborts the others.
type ProvisioningSaga struct {
	store       domain.LedgerStore
	provisioner domain.Provisioner
	credit      *CreditGuard
	lifecycle   *AccountLifecycle
	publisher   domain.EventPublisher
	log         *slog.Logger
	now         func() time.Time
}

// NewProvisioningSaga creates the saga with the given collaborators.
func NewProvisioningSaga(
	store domain.LedgerStore,
	provisioner domain.Provisioner,
	credit *CreditGuard,
	lifecycle *AccountLifecycle,
	publisher domain.EventPublisher,
	log *slog.Logger,
) *ProvisioningSaga {
	return &ProvisioningSaga{
		store:       store,
		provisioner: provisioner,
		credit:      credit,
		lifecycle:   lifecycle,
		publisher:   publisher,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SubmitDomainBatch validates and prices a batch, gates it through the
// credit guard, then provisions each domain in turn. Prices are resolved
// once here; a tier change mid-batch does not affect in-flight domains.
// A successful addition landing on a pending_start or inactive account
// activates it.
func (s *ProvisioningSaga) SubmitDomainBatch(ctx context.Context, actor, accountID string, reqs []DomainRequest) (BatchResult, error) {
	if len(reqs) == 0 {
		return BatchResult{}, &domain.ValidationError{Field: "domains", Reason: "batch is empty"}
	}
	for _, req := range reqs {
		if req.Name == "" {
			return BatchResult{}, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		if req.Type != domain.DomainSingle && req.Type != domain.DomainWildcard {
			return BatchResult{}, &domain.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown domain type %q", req.Type)}
		}
	}

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return BatchResult{}, err
	}
	partner, err := s.store.GetPartner(ctx, account.PartnerID)
	if err != nil {
		return BatchResult{}, err
	}

	prices := make([]int64, len(reqs))
	var total int64
	for i, req := range reqs {
		prices[i] = s.resolvePrice(ctx, partner, account.CertificateType, req.Type == domain.DomainWildcard)
		total += prices[i]
	}

	if err := s.credit.Authorize(ctx, partner, total); err != nil {
		return BatchResult{}, err
	}

	batch := BatchResult{Results: make([]DomainResult, 0, len(reqs))}
	for i, req := range reqs {
		result := s.provisionOne(ctx, actor, account, partner, req, prices[i])
		batch.Results = append(batch.Results, result)
		if result.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}

	if batch.Succeeded > 0 && (account.Status == domain.StatusPendingStart || account.Status == domain.StatusInactive) {
		if _, err := s.lifecycle.Activate(ctx, actor, account); err != nil {
			// The domains are committed; activation is retried on the
			// next successful addition.
			s.log.ErrorContext(ctx, "activating account after batch",
				"account_id", account.ID, "error", err)
		}
	}

	return batch, nil
}

// provisionOne runs the reserve/execute/reconcile steps for a single domain.
// It never returns an error: every outcome is folded into the DomainResult.
func (s *ProvisioningSaga) provisionOne(ctx context.Context, actor string, account domain.Account, partner domain.Partner, req DomainRequest, price int64) DomainResult {
	now := s.now()

	// Reserve: domain row plus pending_api transaction, before any
	// provider traffic. A partial reservation is discarded.
	d := domain.Domain{
		ID:           newID(),
		AccountID:    account.ID,
		Name:         req.Name,
		Type:         req.Type,
		Status:       domain.DomainPending,
		PriceCharged: price,
		AddedAt:      now,
	}
	if err := s.store.InsertDomain(ctx, d); err != nil {
		s.log.ErrorContext(ctx, "reserving domain", "domain", req.Name, "error", err)
		return DomainResult{Domain: req.Name, Error: "ledger reservation failed"}
	}

	tx := domain.Transaction{
		ID:          newID(),
		DomainID:    d.ID,
		AccountID:   account.ID,
		PartnerID:   partner.ID,
		Type:        domain.TxAddDomain,
		Status:      domain.TxPendingAPI,
		Amount:      price,
		Description: "add domain " + req.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		s.log.ErrorContext(ctx, "reserving transaction", "domain", req.Name, "error", err)
		if delErr := s.store.DeleteDomain(ctx, d.ID); delErr != nil {
			s.log.ErrorContext(ctx, "discarding orphaned domain reservation",
				"domain_id", d.ID, "error", delErr)
		}
		return DomainResult{Domain: req.Name, Error: "ledger reservation failed"}
	}

	// Execute: the transaction id doubles as the idempotency token, so
	// provider-side retries of this call cannot double-charge.
	res, err := s.provisioner.AddDomain(ctx, account.ExternalID, req.Name, tx.ID)
	if err != nil {
		return s.reconcileFailure(ctx, d, tx, err)
	}

	return s.reconcileSuccess(ctx, actor, d, tx, res, price)
}

// reconcileFailure lands a domain in failed state. Provider-reported
// rejections and transport errors are treated identically; no refund exists
// for a reservation that never succeeded.
func (s *ProvisioningSaga) reconcileFailure(ctx context.Context, d domain.Domain, tx domain.Transaction, cause error) DomainResult {
	if err := s.store.UpdateDomainStatus(ctx, d.ID, domain.DomainFailed); err != nil {
		s.log.ErrorContext(ctx, "marking domain failed", "domain_id", d.ID, "error", err)
	}
	if err := s.store.UpdateTransactionStatus(ctx, tx.ID, domain.TxFailed, cause.Error()); err != nil {
		s.log.ErrorContext(ctx, "marking transaction failed", "transaction_id", tx.ID, "error", err)
	}
	return DomainResult{Domain: d.Name, Error: cause.Error()}
}

func (s *ProvisioningSaga) reconcileSuccess(ctx context.Context, actor string, d domain.Domain, tx domain.Transaction, res domain.ProvisionResult, price int64) DomainResult {
	if err := s.store.MarkDomainActive(ctx, d.ID, res.OrderRef); err != nil {
		s.log.ErrorContext(ctx, "marking domain active", "domain_id", d.ID, "error", err)
	}
	if err := s.store.SettleTransaction(ctx, tx.ID, res.OrderRef); err != nil {
		s.log.ErrorContext(ctx, "settling transaction", "transaction_id", tx.ID, "error", err)
	}

	entry := domain.AuditEntry{
		ID:         newID(),
		Actor:      actor,
		Action:     domain.AuditAddDomain,
		TargetType: "domain",
		TargetID:   d.ID,
		Severity:   domain.SeverityInfo,
		Details: map[string]any{
			"domain":         d.Name,
			"price":          price,
			"order_ref":      res.OrderRef,
			"account_id":     d.AccountID,
			"transaction_id": tx.ID,
		},
		CreatedAt: s.now(),
	}
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		s.log.ErrorContext(ctx, "appending audit entry", "domain_id", d.ID, "error", err)
	}

	if err := s.publisher.Publish(ctx, domain.EventDomainProvisioned, domain.EventRef{
		AccountID: d.AccountID,
		DomainID:  d.ID,
		Domain:    d.Name,
	}); err != nil {
		s.log.WarnContext(ctx, "publishing provision event", "domain_id", d.ID, "error", err)
	}

	return DomainResult{Domain: d.Name, Success: true}
}

// resolvePrice looks up the partner's tier and falls back to the fixed
// default when the tier is missing or the lookup fails.
func (s *ProvisioningSaga) resolvePrice(ctx context.Context, partner domain.Partner, certType domain.CertificateType, wildcard bool) int64 {
	price, err := s.store.FindPrice(ctx, partner.PricingClass, certType, wildcard)
	if err != nil {
		if !errors.Is(err, domain.ErrPriceTierNotFound) {
			s.log.WarnContext(ctx, "price tier lookup failed, using default",
				"pricing_class", partner.PricingClass, "error", err)
		}
		return domain.DefaultPrice(certType, wildcard)
	}
	return price
}
