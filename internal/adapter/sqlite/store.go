package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/croftlabs/certbill/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements domain.LedgerStore using SQLite.
type Store struct {
	db *sql.DB
}

// Compile-time check: Store implements domain.LedgerStore.
var _ domain.LedgerStore = (*Store)(nil)

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and
// returns a ready store. Use this when the *sql.DB has been pre-configured
// (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*Store, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (s *Store) DB() *sql.DB {
	return s.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

// --- Partners ---

// InsertPartner seeds a partner row. Partner rows are owned by the identity
// provider upstream; this exists for provisioning tooling and tests.
func (s *Store) InsertPartner(ctx context.Context, p domain.Partner) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO partners (id, name, payment_type, credit_limit, pricing_class, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.PaymentType), p.CreditLimit, p.PricingClass,
		p.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting partner: %w", err)
	}
	return nil
}

func (s *Store) GetPartner(ctx context.Context, id string) (domain.Partner, error) {
	var p domain.Partner
	var paymentType, createdAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, payment_type, credit_limit, pricing_class, created_at
		 FROM partners WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &paymentType, &p.CreditLimit, &p.PricingClass, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Partner{}, domain.ErrPartnerNotFound
		}
		return domain.Partner{}, fmt.Errorf("scanning partner: %w", err)
	}

	p.PaymentType = domain.PaymentType(paymentType)
	p.CreatedAt, _ = time.Parse(timeFormat, createdAt)

	return p, nil
}

// --- Accounts ---

// InsertAccount seeds an account row (provisioning tooling and tests).
func (s *Store) InsertAccount(ctx context.Context, a domain.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, partner_id, client_name, external_id, status,
		                       certificate_type, subscription_years, start_date, end_date,
		                       created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PartnerID, a.ClientName, a.ExternalID, string(a.Status),
		string(a.CertificateType), a.SubscriptionYears,
		nullTime(a.StartDate), nullTime(a.EndDate),
		a.CreatedAt.UTC().Format(timeFormat),
		a.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var a domain.Account
	var status, certType, createdAt, updatedAt string
	var startDate, endDate sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, partner_id, client_name, external_id, status, certificate_type,
		        subscription_years, start_date, end_date, created_at, updated_at
		 FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.PartnerID, &a.ClientName, &a.ExternalID, &status, &certType,
		&a.SubscriptionYears, &startDate, &endDate, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("scanning account: %w", err)
	}

	a.Status = domain.AccountStatus(status)
	a.CertificateType = domain.CertificateType(certType)
	a.StartDate = parseNullTime(startDate)
	a.EndDate = parseNullTime(endDate)
	a.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	a.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a domain.Account) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET status = ?, subscription_years = ?, start_date = ?, end_date = ?, updated_at = ?
		 WHERE id = ?`,
		string(a.Status), a.SubscriptionYears, nullTime(a.StartDate), nullTime(a.EndDate),
		time.Now().UTC().Format(timeFormat), a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

func (s *Store) CountActiveDomains(ctx context.Context, accountID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM domains WHERE account_id = ? AND status = ?`,
		accountID, string(domain.DomainActive),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active domains: %w", err)
	}
	return count, nil
}

// --- Domains ---

func (s *Store) InsertDomain(ctx context.Context, d domain.Domain) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domains (id, account_id, name, domain_type, status, price_charged,
		                      order_ref, added_at, removed_at, refund_transaction_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.AccountID, d.Name, string(d.Type), string(d.Status), d.PriceCharged,
		d.OrderRef, d.AddedAt.UTC().Format(timeFormat), nullTime(d.RemovedAt), d.RefundTransactionID,
	)
	if err != nil {
		return fmt.Errorf("inserting domain: %w", err)
	}
	return nil
}

func (s *Store) GetDomain(ctx context.Context, id string) (domain.Domain, error) {
	var d domain.Domain
	var domainType, status, addedAt string
	var removedAt sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, name, domain_type, status, price_charged, order_ref,
		        added_at, removed_at, refund_transaction_id
		 FROM domains WHERE id = ?`, id,
	).Scan(&d.ID, &d.AccountID, &d.Name, &domainType, &status, &d.PriceCharged,
		&d.OrderRef, &addedAt, &removedAt, &d.RefundTransactionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Domain{}, domain.ErrDomainNotFound
		}
		return domain.Domain{}, fmt.Errorf("scanning domain: %w", err)
	}

	d.Type = domain.DomainType(domainType)
	d.Status = domain.DomainStatus(status)
	d.AddedAt, _ = time.Parse(timeFormat, addedAt)
	d.RemovedAt = parseNullTime(removedAt)

	return d, nil
}

func (s *Store) UpdateDomainStatus(ctx context.Context, id string, status domain.DomainStatus) error {
	return s.execDomainUpdate(ctx, id,
		`UPDATE domains SET status = ? WHERE id = ?`, string(status), id)
}

func (s *Store) MarkDomainActive(ctx context.Context, id, orderRef string) error {
	return s.execDomainUpdate(ctx, id,
		`UPDATE domains SET status = ?, order_ref = ? WHERE id = ?`,
		string(domain.DomainActive), orderRef, id)
}

func (s *Store) MarkDomainRemoved(ctx context.Context, id string, removedAt time.Time) error {
	return s.execDomainUpdate(ctx, id,
		`UPDATE domains SET status = ?, removed_at = ? WHERE id = ?`,
		string(domain.DomainRemoved), removedAt.UTC().Format(timeFormat), id)
}

func (s *Store) LinkDomainRefund(ctx context.Context, domainID, transactionID string) error {
	return s.execDomainUpdate(ctx, domainID,
		`UPDATE domains SET refund_transaction_id = ? WHERE id = ?`, transactionID, domainID)
}

func (s *Store) DeleteDomain(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM domains WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting domain: %w", err)
	}
	return nil
}

func (s *Store) execDomainUpdate(ctx context.Context, id, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating domain: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDomainNotFound
	}

	return nil
}

// --- Transactions ---

func (s *Store) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, domain_id, account_id, partner_id, type, status,
		                           amount, description, order_ref, related_transaction_id,
		                           created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.DomainID, tx.AccountID, tx.PartnerID, string(tx.Type), string(tx.Status),
		tx.Amount, tx.Description, tx.OrderRef, tx.RelatedTransactionID,
		tx.CreatedAt.UTC().Format(timeFormat),
		tx.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("duplicate %s transaction for domain %s: %w", tx.Type, tx.DomainID, err)
		}
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

func (s *Store) UpdateTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus, description string) error {
	query := `UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?`
	args := []any{string(status), time.Now().UTC().Format(timeFormat), id}
	if description != "" {
		query = `UPDATE transactions SET status = ?, description = ?, updated_at = ? WHERE id = ?`
		args = []any{string(status), description, time.Now().UTC().Format(timeFormat), id}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

func (s *Store) SettleTransaction(ctx context.Context, id, orderRef string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = ?, order_ref = ?, updated_at = ? WHERE id = ?`,
		string(domain.TxSuccess), orderRef, time.Now().UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("settling transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

func (s *Store) FindTransactionByDomainAndType(ctx context.Context, domainID string, txType domain.TransactionType) (domain.Transaction, error) {
	var tx domain.Transaction
	var typ, status, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, domain_id, account_id, partner_id, type, status, amount,
		        description, order_ref, related_transaction_id, created_at, updated_at
		 FROM transactions WHERE domain_id = ? AND type = ?
		 ORDER BY created_at DESC LIMIT 1`,
		domainID, string(txType),
	).Scan(&tx.ID, &tx.DomainID, &tx.AccountID, &tx.PartnerID, &typ, &status, &tx.Amount,
		&tx.Description, &tx.OrderRef, &tx.RelatedTransactionID, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Transaction{}, domain.ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("scanning transaction: %w", err)
	}

	tx.Type = domain.TransactionType(typ)
	tx.Status = domain.TransactionStatus(status)
	tx.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	tx.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return tx, nil
}

// PartnerUsage computes charged-minus-refunded usage in one pass:
// add_domain entries count while successful or still reserved (pending_api),
// settled refunds count against.
func (s *Store) PartnerUsage(ctx context.Context, partnerID string) (int64, error) {
	var used int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE
		        WHEN type = 'add_domain' AND status IN ('success', 'pending_api') THEN amount
		        WHEN type = 'refund' AND status = 'success' THEN -amount
		        ELSE 0 END), 0)
		 FROM transactions WHERE partner_id = ?`, partnerID,
	).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("summing partner usage: %w", err)
	}
	return used, nil
}

func (s *Store) CountSuccessfulRefunds(ctx context.Context, accountID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions
		 WHERE account_id = ? AND type = 'refund' AND status = 'success' AND created_at >= ?`,
		accountID, since.UTC().Format(timeFormat),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting refunds: %w", err)
	}
	return count, nil
}

// --- Pricing ---

func (s *Store) FindPrice(ctx context.Context, pricingClass string, certType domain.CertificateType, wildcard bool) (int64, error) {
	var price int64
	err := s.db.QueryRowContext(ctx,
		`SELECT price FROM price_tiers
		 WHERE pricing_class = ? AND certificate_type = ? AND wildcard = ?`,
		pricingClass, string(certType), boolToInt(wildcard),
	).Scan(&price)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, domain.ErrPriceTierNotFound
		}
		return 0, fmt.Errorf("scanning price tier: %w", err)
	}
	return price, nil
}

// --- Audit ---

func (s *Store) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("encoding audit details: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor, action, target_type, target_id, severity, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Actor, string(entry.Action), entry.TargetType, entry.TargetID,
		string(entry.Severity), string(details), entry.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// ListAuditByTarget returns the audit trail for one target, oldest first.
func (s *Store) ListAuditByTarget(ctx context.Context, targetID string) ([]domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor, action, target_type, target_id, severity, details, created_at
		 FROM audit_log WHERE target_id = ? ORDER BY created_at, id`, targetID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var action, severity, details, createdAt string

		if err := rows.Scan(&e.ID, &e.Actor, &action, &e.TargetType, &e.TargetID,
			&severity, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		e.Action = domain.AuditAction(action)
		e.Severity = domain.AuditSeverity(severity)
		e.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("decoding audit details: %w", err)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Helpers ---

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
