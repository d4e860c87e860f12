package app_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/croftlabs/certbill/internal/domain"
)

// discardLogger keeps service logging out of test output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Ledger store mock ---

type mockStore struct {
	partners map[string]domain.Partner
	accounts map[string]domain.Account
	domains  map[string]domain.Domain
	txs      map[string]domain.Transaction
	txOrder  []string
	audits   []domain.AuditEntry
	prices   map[string]int64

	// Failure injection.
	domainInsertErr error
	txInsertErr     error

	deletedDomains []string
}

func newMockStore() *mockStore {
	return &mockStore{
		partners: make(map[string]domain.Partner),
		accounts: make(map[string]domain.Account),
		domains:  make(map[string]domain.Domain),
		txs:      make(map[string]domain.Transaction),
		prices:   make(map[string]int64),
	}
}

func priceKey(class string, certType domain.CertificateType, wildcard bool) string {
	return fmt.Sprintf("%s|%s|%t", class, certType, wildcard)
}

func (m *mockStore) GetPartner(_ context.Context, id string) (domain.Partner, error) {
	p, ok := m.partners[id]
	if !ok {
		return domain.Partner{}, domain.ErrPartnerNotFound
	}
	return p, nil
}

func (m *mockStore) GetAccount(_ context.Context, id string) (domain.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return a, nil
}

func (m *mockStore) UpdateAccount(_ context.Context, a domain.Account) error {
	if _, ok := m.accounts[a.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *mockStore) CountActiveDomains(_ context.Context, accountID string) (int, error) {
	count := 0
	for _, d := range m.domains {
		if d.AccountID == accountID && d.Status == domain.DomainActive {
			count++
		}
	}
	return count, nil
}

func (m *mockStore) InsertDomain(_ context.Context, d domain.Domain) error {
	if m.domainInsertErr != nil {
		return m.domainInsertErr
	}
	m.domains[d.ID] = d
	return nil
}

func (m *mockStore) GetDomain(_ context.Context, id string) (domain.Domain, error) {
	d, ok := m.domains[id]
	if !ok {
		return domain.Domain{}, domain.ErrDomainNotFound
	}
	return d, nil
}

func (m *mockStore) UpdateDomainStatus(_ context.Context, id string, status domain.DomainStatus) error {
	d, ok := m.domains[id]
	if !ok {
		return domain.ErrDomainNotFound
	}
	d.Status = status
	m.domains[id] = d
	return nil
}

func (m *mockStore) MarkDomainActive(_ context.Context, id, orderRef string) error {
	d, ok := m.domains[id]
	if !ok {
		return domain.ErrDomainNotFound
	}
	d.Status = domain.DomainActive
	d.OrderRef = orderRef
	m.domains[id] = d
	return nil
}

func (m *mockStore) MarkDomainRemoved(_ context.Context, id string, removedAt time.Time) error {
	d, ok := m.domains[id]
	if !ok {
		return domain.ErrDomainNotFound
	}
	d.Status = domain.DomainRemoved
	d.RemovedAt = &removedAt
	m.domains[id] = d
	return nil
}

func (m *mockStore) LinkDomainRefund(_ context.Context, domainID, transactionID string) error {
	d, ok := m.domains[domainID]
	if !ok {
		return domain.ErrDomainNotFound
	}
	d.RefundTransactionID = transactionID
	m.domains[domainID] = d
	return nil
}

func (m *mockStore) DeleteDomain(_ context.Context, id string) error {
	delete(m.domains, id)
	m.deletedDomains = append(m.deletedDomains, id)
	return nil
}

func (m *mockStore) InsertTransaction(_ context.Context, tx domain.Transaction) error {
	if m.txInsertErr != nil {
		return m.txInsertErr
	}
	m.txs[tx.ID] = tx
	m.txOrder = append(m.txOrder, tx.ID)
	return nil
}

func (m *mockStore) UpdateTransactionStatus(_ context.Context, id string, status domain.TransactionStatus, description string) error {
	tx, ok := m.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	tx.Status = status
	if description != "" {
		tx.Description = description
	}
	m.txs[id] = tx
	return nil
}

func (m *mockStore) SettleTransaction(_ context.Context, id, orderRef string) error {
	tx, ok := m.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	tx.Status = domain.TxSuccess
	tx.OrderRef = orderRef
	m.txs[id] = tx
	return nil
}

func (m *mockStore) FindTransactionByDomainAndType(_ context.Context, domainID string, txType domain.TransactionType) (domain.Transaction, error) {
	for _, id := range m.txOrder {
		tx := m.txs[id]
		if tx.DomainID == domainID && tx.Type == txType {
			return tx, nil
		}
	}
	return domain.Transaction{}, domain.ErrTransactionNotFound
}

func (m *mockStore) PartnerUsage(_ context.Context, partnerID string) (int64, error) {
	var used int64
	for _, tx := range m.txs {
		if tx.PartnerID != partnerID {
			continue
		}
		switch {
		case tx.Type == domain.TxAddDomain && (tx.Status == domain.TxSuccess || tx.Status == domain.TxPendingAPI):
			used += tx.Amount
		case tx.Type == domain.TxRefund && tx.Status == domain.TxSuccess:
			used -= tx.Amount
		}
	}
	return used, nil
}

func (m *mockStore) CountSuccessfulRefunds(_ context.Context, accountID string, since time.Time) (int, error) {
	count := 0
	for _, tx := range m.txs {
		if tx.AccountID == accountID && tx.Type == domain.TxRefund &&
			tx.Status == domain.TxSuccess && !tx.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *mockStore) FindPrice(_ context.Context, pricingClass string, certType domain.CertificateType, wildcard bool) (int64, error) {
	price, ok := m.prices[priceKey(pricingClass, certType, wildcard)]
	if !ok {
		return 0, domain.ErrPriceTierNotFound
	}
	return price, nil
}

func (m *mockStore) AppendAudit(_ context.Context, entry domain.AuditEntry) error {
	m.audits = append(m.audits, entry)
	return nil
}

// auditsByAction filters the recorded trail.
func (m *mockStore) auditsByAction(action domain.AuditAction) []domain.AuditEntry {
	var out []domain.AuditEntry
	for _, e := range m.audits {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// transactionsByType returns recorded transactions of one type, in insert order.
func (m *mockStore) transactionsByType(txType domain.TransactionType) []domain.Transaction {
	var out []domain.Transaction
	for _, id := range m.txOrder {
		if m.txs[id].Type == txType {
			out = append(out, m.txs[id])
		}
	}
	return out
}

// --- Provisioner mock ---

type addCall struct {
	account string
	name    string
	token   string
}

type mockProvisioner struct {
	addErr       error
	addErrByName map[string]error
	orderRef     string
	addCalls     []addCall

	removeErr   error
	removeCalls int
}

func (m *mockProvisioner) AddDomain(_ context.Context, accountExternalID, domainName, idempotencyToken string) (domain.ProvisionResult, error) {
	m.addCalls = append(m.addCalls, addCall{account: accountExternalID, name: domainName, token: idempotencyToken})
	if err, ok := m.addErrByName[domainName]; ok {
		return domain.ProvisionResult{}, err
	}
	if m.addErr != nil {
		return domain.ProvisionResult{}, m.addErr
	}
	ref := m.orderRef
	if ref == "" {
		ref = "order-" + domainName
	}
	return domain.ProvisionResult{OrderRef: ref}, nil
}

func (m *mockProvisioner) RemoveDomain(_ context.Context, _, _ string) error {
	m.removeCalls++
	return m.removeErr
}

// --- Publisher mock ---

type publishedEvent struct {
	event domain.Event
	ref   domain.EventRef
}

type mockPublisher struct {
	events []publishedEvent
}

func (m *mockPublisher) Publish(_ context.Context, event domain.Event, ref domain.EventRef) error {
	m.events = append(m.events, publishedEvent{event: event, ref: ref})
	return nil
}

func (m *mockPublisher) byEvent(event domain.Event) []publishedEvent {
	var out []publishedEvent
	for _, e := range m.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}
