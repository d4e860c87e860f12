package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/croftlabs/certbill/internal/domain"
)

// abuseWindow is the trailing period scanned for refund abuse, and
// abuseThreshold the successful-refund count that flags an account.
const (
	abuseWindow    = 30 * 24 * time.Hour
	abuseThreshold = 3
)

// AccountLifecycle derives account status transitions from domain population
// changes. Both triggers re-derive state from the ledger rather than caching
// counts. Suspended and terminated accounts are never touched; those states
// are reachable only through the administrative surface.
type AccountLifecycle struct {
	store     domain.LedgerStore
	validator domain.TransitionValidator
	publisher domain.EventPublisher
	log       *slog.Logger
	now       func() time.Time
}

// NewAccountLifecycle creates the lifecycle engine with the given adapters.
func NewAccountLifecycle(store domain.LedgerStore, validator domain.TransitionValidator, publisher domain.EventPublisher, log *slog.Logger) *AccountLifecycle {
	return &AccountLifecycle{
		store:     store,
		validator: validator,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Account returns an account by id (read path).
func (l *AccountLifecycle) Account(ctx context.Context, id string) (domain.Account, error) {
	return l.store.GetAccount(ctx, id)
}

// Activate moves an account to active after its first successful domain
// addition, stamping the billing period from the subscription length.
// A pending_start account is "activated", an inactive one "reactivated";
// the distinction exists only for audit labeling.
func (l *AccountLifecycle) Activate(ctx context.Context, actor string, account domain.Account) (domain.Account, error) {
	event := domain.EventActivate
	action := domain.AuditAccountActivated
	if account.Status == domain.StatusInactive {
		event = domain.EventReactivate
		action = domain.AuditAccountReactivated
	}

	newStatus, err := l.validator.Apply(ctx, account.Status, event)
	if err != nil {
		return domain.Account{}, err
	}

	now := l.now()
	end := now.AddDate(account.SubscriptionYears, 0, 0)

	account.Status = newStatus
	account.StartDate = &now
	account.EndDate = &end
	account.UpdatedAt = now

	if err := l.store.UpdateAccount(ctx, account); err != nil {
		return domain.Account{}, fmt.Errorf("updating account: %w", err)
	}

	l.audit(ctx, domain.AuditEntry{
		Actor:      actor,
		Action:     action,
		TargetType: "account",
		TargetID:   account.ID,
		Severity:   domain.SeverityInfo,
		Details: map[string]any{
			"start_date":         now.Format(time.RFC3339),
			"end_date":           end.Format(time.RFC3339),
			"subscription_years": account.SubscriptionYears,
		},
	})
	l.publish(ctx, event, domain.EventRef{AccountID: account.ID})

	return account, nil
}

// HandleRemoval re-derives the account status after a domain removal.
// If the removal drained the last active domain from an active account, the
// account is deactivated and its billing period cleared, then the refund
// history is scanned for abuse. Abuse detection is purely observational and
// never blocks the deactivation.
func (l *AccountLifecycle) HandleRemoval(ctx context.Context, actor, accountID string) error {
	account, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status != domain.StatusActive {
		return nil
	}

	active, err := l.store.CountActiveDomains(ctx, accountID)
	if err != nil {
		return fmt.Errorf("counting active domains: %w", err)
	}
	if active > 0 {
		return nil
	}

	newStatus, err := l.validator.Apply(ctx, account.Status, domain.EventDeactivate)
	if err != nil {
		return err
	}

	account.Status = newStatus
	account.StartDate = nil
	account.EndDate = nil
	account.UpdatedAt = l.now()

	if err := l.store.UpdateAccount(ctx, account); err != nil {
		return fmt.Errorf("updating account: %w", err)
	}

	l.audit(ctx, domain.AuditEntry{
		Actor:      actor,
		Action:     domain.AuditAccountDeactivated,
		TargetType: "account",
		TargetID:   account.ID,
		Severity:   domain.SeverityInfo,
		Details:    map[string]any{"reason": "zero active domains"},
	})
	l.publish(ctx, domain.EventDeactivate, domain.EventRef{AccountID: account.ID})

	l.detectAbuse(ctx, actor, account.ID)

	return nil
}

// detectAbuse flags accounts accruing refunds suspiciously fast. Failures
// here are logged, never returned: the deactivation already settled.
func (l *AccountLifecycle) detectAbuse(ctx context.Context, actor, accountID string) {
	since := l.now().Add(-abuseWindow)

	refunds, err := l.store.CountSuccessfulRefunds(ctx, accountID, since)
	if err != nil {
		l.log.ErrorContext(ctx, "abuse detection failed", "account_id", accountID, "error", err)
		return
	}
	if refunds < abuseThreshold {
		return
	}

	l.audit(ctx, domain.AuditEntry{
		Actor:      actor,
		Action:     domain.AuditAbuseFlagged,
		TargetType: "account",
		TargetID:   accountID,
		Severity:   domain.SeverityHigh,
		Details: map[string]any{
			"refunds_in_window": refunds,
			"window_days":       int(abuseWindow.Hours() / 24),
		},
	})
	l.publish(ctx, domain.EventAbuseFlagged, domain.EventRef{
		AccountID: accountID,
		Detail:    fmt.Sprintf("%d refunds in trailing window", refunds),
	})
}

// audit appends an entry, logging instead of failing: the business mutation
// it describes has already been committed.
func (l *AccountLifecycle) audit(ctx context.Context, entry domain.AuditEntry) {
	entry.ID = newID()
	entry.CreatedAt = l.now()
	if err := l.store.AppendAudit(ctx, entry); err != nil {
		l.log.ErrorContext(ctx, "appending audit entry",
			"action", string(entry.Action), "target_id", entry.TargetID, "error", err)
	}
}

func (l *AccountLifecycle) publish(ctx context.Context, event domain.Event, ref domain.EventRef) {
	if err := l.publisher.Publish(ctx, event, ref); err != nil {
		l.log.WarnContext(ctx, "publishing lifecycle event",
			"event", string(event), "account_id", ref.AccountID, "error", err)
	}
}
