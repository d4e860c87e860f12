package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/croftlabs/certbill/internal/app"
	"github.com/croftlabs/certbill/internal/domain"
)

func seedAddTx(store *mockStore, partnerID string, amount int64, status domain.TransactionStatus) {
	id := "tx-" + partnerID + "-" + string(status) + "-" + time.Now().Format("150405.000000000")
	store.txs[id] = domain.Transaction{
		ID:        id,
		PartnerID: partnerID,
		Type:      domain.TxAddDomain,
		Status:    status,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	store.txOrder = append(store.txOrder, id)
}

func TestAuthorizePostPaidBypassesLimit(t *testing.T) {
	store := newMockStore()
	guard := app.NewCreditGuard(store)

	partner := domain.Partner{ID: "p1", PaymentType: domain.PaymentPostPaid, CreditLimit: 0}
	if err := guard.Authorize(context.Background(), partner, 10000); err != nil {
		t.Fatalf("Authorize() post_paid = %v, want nil", err)
	}
}

func TestAuthorizeDepositWithinLimit(t *testing.T) {
	store := newMockStore()
	guard := app.NewCreditGuard(store)

	partner := domain.Partner{ID: "p1", PaymentType: domain.PaymentDeposit, CreditLimit: 100}
	seedAddTx(store, "p1", 80, domain.TxSuccess)

	if err := guard.Authorize(context.Background(), partner, 20); err != nil {
		t.Fatalf("Authorize() within limit = %v, want nil", err)
	}
}

func TestAuthorizeDepositRejectsOverLimit(t *testing.T) {
	store := newMockStore()
	guard := app.NewCreditGuard(store)

	partner := domain.Partner{ID: "p1", PaymentType: domain.PaymentDeposit, CreditLimit: 100}
	seedAddTx(store, "p1", 80, domain.TxSuccess)

	err := guard.Authorize(context.Background(), partner, 30)
	var credErr *domain.CreditError
	if !errors.As(err, &credErr) {
		t.Fatalf("Authorize() over limit = %v, want *domain.CreditError", err)
	}
	if got := credErr.Shortfall(); got != 10 {
		t.Errorf("Shortfall() = %d, want 10", got)
	}
	if credErr.Available != 20 {
		t.Errorf("Available = %d, want 20", credErr.Available)
	}
}

func TestAuthorizeCountsPendingReservations(t *testing.T) {
	store := newMockStore()
	guard := app.NewCreditGuard(store)

	partner := domain.Partner{ID: "p1", PaymentType: domain.PaymentDeposit, CreditLimit: 100}
	seedAddTx(store, "p1", 50, domain.TxSuccess)
	seedAddTx(store, "p1", 40, domain.TxPendingAPI)

	if err := guard.Authorize(context.Background(), partner, 20); err == nil {
		t.Fatal("Authorize() = nil, want rejection: pending reservations must count as usage")
	}
}

func TestAuthorizeRefundsRestoreCredit(t *testing.T) {
	store := newMockStore()
	guard := app.NewCreditGuard(store)

	partner := domain.Partner{ID: "p1", PaymentType: domain.PaymentDeposit, CreditLimit: 100}
	seedAddTx(store, "p1", 90, domain.TxSuccess)
	store.txs["refund1"] = domain.Transaction{
		ID: "refund1", PartnerID: "p1", Type: domain.TxRefund,
		Status: domain.TxSuccess, Amount: 90, CreatedAt: time.Now().UTC(),
	}
	store.txOrder = append(store.txOrder, "refund1")

	if err := guard.Authorize(context.Background(), partner, 100); err != nil {
		t.Fatalf("Authorize() after full refund = %v, want nil", err)
	}
}

func TestStatusDeposit(t *testing.T) {
	store := newMockStore()
	store.partners["p1"] = domain.Partner{ID: "p1", PaymentType: domain.PaymentDeposit, CreditLimit: 500}
	seedAddTx(store, "p1", 120, domain.TxSuccess)

	guard := app.NewCreditGuard(store)
	status, err := guard.Status(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Unlimited {
		t.Error("Unlimited = true for deposit partner")
	}
	if status.Limit != 500 || status.Used != 120 || status.Available != 380 {
		t.Errorf("Status() = %+v, want limit 500, used 120, available 380", status)
	}
}

func TestStatusPostPaidUnlimited(t *testing.T) {
	store := newMockStore()
	store.partners["p1"] = domain.Partner{ID: "p1", PaymentType: domain.PaymentPostPaid}

	guard := app.NewCreditGuard(store)
	status, err := guard.Status(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.Unlimited {
		t.Error("Unlimited = false for post_paid partner")
	}
}

func TestStatusUnknownPartner(t *testing.T) {
	guard := app.NewCreditGuard(newMockStore())
	if _, err := guard.Status(context.Background(), "ghost"); !errors.Is(err, domain.ErrPartnerNotFound) {
		t.Fatalf("Status() = %v, want ErrPartnerNotFound", err)
	}
}
