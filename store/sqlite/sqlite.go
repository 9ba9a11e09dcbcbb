/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements engine.LockingStore using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences, with
  the in-process per-payer lock replaced by SELECT ... FOR UPDATE on the
  payer row.

KEY TABLES:
  payers:   Risk status and approved quota per debtor
  invoices: Immutable rows, guarantee fixed at insert; only stored_status
            has an UPDATE path

CRITICAL SECTION:
  WithPayerLock pairs an in-process bounded-wait lock per payer id with a
  database transaction. The lock serializes same-payer allocations in this
  single-writer process; the transaction makes the section's writes
  all-or-nothing. Sections for different payers proceed concurrently.

MONETARY VALUES:
  Stored as decimal strings, parsed back through engine.MoneyFromString.
  No floats touch an amount.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  readers don't block and crash recovery improves.

USAGE:
  store, err := sqlite.New("./data/avalia.db", engine.DefaultLockWait)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/avalia/credit-engine/engine"
)

// Store implements engine.LockingStore using SQLite.
type Store struct {
	db    *sql.DB
	locks *engine.LockTable
}

// New creates a SQLite store at the given path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string, lockWait time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := NewWithDB(db, lockWait)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an existing connection without migrating. The caller owns
// the schema; tests use this with sqlmock.
func NewWithDB(db *sql.DB, lockWait time.Duration) *Store {
	return &Store{db: db, locks: engine.NewLockTable(lockWait)}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payers (
		id TEXT PRIMARY KEY,
		legal_name TEXT NOT NULL,
		contact_email TEXT,
		risk_status TEXT NOT NULL,
		approved_quota TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payers_risk_status
		ON payers(risk_status);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		payer_id TEXT NOT NULL REFERENCES payers(id),
		client_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		issue_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		stored_status TEXT NOT NULL,
		is_guaranteed BOOLEAN NOT NULL,
		guaranteed_amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Quota computation hot path: invoices of one payer
	CREATE INDEX IF NOT EXISTS idx_invoices_payer
		ON invoices(payer_id);

	CREATE INDEX IF NOT EXISTS idx_invoices_client
		ON invoices(client_id);

	CREATE INDEX IF NOT EXISTS idx_invoices_status
		ON invoices(stored_status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so every query runs either directly
// or inside a payer section's transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// PAYERS (engine.Store interface)
// =============================================================================

func (s *Store) CreatePayer(ctx context.Context, p engine.Payer) error {
	return createPayer(ctx, s.db, p)
}

func createPayer(ctx context.Context, q dbtx, p engine.Payer) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payers (id, legal_name, contact_email, risk_status, approved_quota, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.LegalName, p.ContactEmail, p.RiskStatus,
		p.ApprovedQuota.String(), p.CreatedAt.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payer: %w", err)
	}
	return nil
}

func (s *Store) GetPayer(ctx context.Context, id engine.PayerID) (*engine.Payer, error) {
	return getPayer(ctx, s.db, id)
}

func getPayer(ctx context.Context, q dbtx, id engine.PayerID) (*engine.Payer, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, legal_name, contact_email, risk_status, approved_quota, created_at
		FROM payers WHERE id = ?`, id)

	p, err := scanPayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrPayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payer: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePayer(ctx context.Context, p engine.Payer) error {
	return updatePayer(ctx, s.db, p)
}

func updatePayer(ctx context.Context, q dbtx, p engine.Payer) error {
	res, err := q.ExecContext(ctx, `
		UPDATE payers
		SET legal_name = ?, contact_email = ?, risk_status = ?, approved_quota = ?
		WHERE id = ?`,
		p.LegalName, p.ContactEmail, p.RiskStatus, p.ApprovedQuota.String(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrPayerNotFound
	}
	return nil
}

func (s *Store) DeletePayer(ctx context.Context, id engine.PayerID) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE payer_id = ?`, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count payer invoices: %w", err)
	}
	if count > 0 {
		return engine.ErrPayerHasInvoices
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM payers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrPayerNotFound
	}
	return nil
}

func (s *Store) ListPayers(ctx context.Context) ([]engine.Payer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, legal_name, contact_email, risk_status, approved_quota, created_at
		FROM payers ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payers: %w", err)
	}
	defer rows.Close()

	var payers []engine.Payer
	for rows.Next() {
		p, err := scanPayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payer: %w", err)
		}
		payers = append(payers, *p)
	}
	return payers, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPayer(row scannable) (*engine.Payer, error) {
	var (
		p         engine.Payer
		email     sql.NullString
		quota     string
		createdAt string
	)

	err := row.Scan(&p.ID, &p.LegalName, &email, &p.RiskStatus, &quota, &createdAt)
	if err != nil {
		return nil, err
	}

	p.ContactEmail = email.String
	p.ApprovedQuota, err = engine.MoneyFromString(quota)
	if err != nil {
		return nil, fmt.Errorf("corrupt approved_quota %q: %w", quota, err)
	}
	p.CreatedAt, _ = engine.ParseDate(createdAt)
	return &p, nil
}

// =============================================================================
// INVOICES (engine.Store interface)
// =============================================================================

const invoiceColumns = `id, number, payer_id, client_id, amount,
	issue_date, due_date, stored_status, is_guaranteed, guaranteed_amount, created_at`

func (s *Store) InsertInvoice(ctx context.Context, inv engine.Invoice) error {
	return insertInvoice(ctx, s.db, inv)
}

func insertInvoice(ctx context.Context, q dbtx, inv engine.Invoice) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO invoices
		(`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Number, inv.PayerID, inv.ClientID,
		inv.Amount.String(), inv.IssueDate.String(), inv.DueDate.String(),
		inv.StoredStatus, inv.IsGuaranteed, inv.GuaranteedAmount.String(),
		inv.CreatedAt.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id engine.InvoiceID) (*engine.Invoice, error) {
	return getInvoice(ctx, s.db, id)
}

func getInvoice(ctx context.Context, q dbtx, id engine.InvoiceID) (*engine.Invoice, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)

	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

func (s *Store) UpdateInvoiceStatus(ctx context.Context, id engine.InvoiceID, status engine.StoredStatus) error {
	return updateInvoiceStatus(ctx, s.db, id, status)
}

func updateInvoiceStatus(ctx context.Context, q dbtx, id engine.InvoiceID, status engine.StoredStatus) error {
	res, err := q.ExecContext(ctx,
		`UPDATE invoices SET stored_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrInvoiceNotFound
	}
	return nil
}

func (s *Store) InvoicesByPayer(ctx context.Context, payerID engine.PayerID) ([]engine.Invoice, error) {
	return invoicesByPayer(ctx, s.db, payerID)
}

func invoicesByPayer(ctx context.Context, q dbtx, payerID engine.PayerID) ([]engine.Invoice, error) {
	return queryInvoices(ctx, q, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE payer_id = ?
		ORDER BY created_at ASC, id ASC`, payerID)
}

func (s *Store) ListInvoices(ctx context.Context) ([]engine.Invoice, error) {
	return queryInvoices(ctx, s.db, `
		SELECT `+invoiceColumns+` FROM invoices
		ORDER BY created_at ASC, id ASC`)
}

func queryInvoices(ctx context.Context, q dbtx, query string, args ...any) ([]engine.Invoice, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []engine.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func scanInvoice(row scannable) (*engine.Invoice, error) {
	var (
		inv        engine.Invoice
		amount     string
		issueDate  string
		dueDate    string
		guaranteed string
		createdAt  string
	)

	err := row.Scan(
		&inv.ID, &inv.Number, &inv.PayerID, &inv.ClientID, &amount,
		&issueDate, &dueDate, &inv.StoredStatus, &inv.IsGuaranteed,
		&guaranteed, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Amount, err = engine.MoneyFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	inv.GuaranteedAmount, err = engine.MoneyFromString(guaranteed)
	if err != nil {
		return nil, fmt.Errorf("corrupt guaranteed_amount %q: %w", guaranteed, err)
	}
	inv.IssueDate, _ = engine.ParseDate(issueDate)
	inv.DueDate, _ = engine.ParseDate(dueDate)
	inv.CreatedAt, _ = engine.ParseDate(createdAt)
	return &inv, nil
}

// =============================================================================
// PER-PAYER CRITICAL SECTION (engine.LockingStore interface)
// =============================================================================

// WithPayerLock acquires the payer's in-process lock, then runs fn inside a
// database transaction. Commit happens only if fn returns nil; any error
// rolls everything back. Lock acquisition past the bounded wait returns
// engine.ErrLockTimeout without touching the database.
func (s *Store) WithPayerLock(ctx context.Context, payerID engine.PayerID, fn func(engine.Store) error) error {
	release, err := s.locks.Acquire(ctx, payerID)
	if err != nil {
		return err
	}
	defer release()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore routes every operation through the section's transaction.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) CreatePayer(ctx context.Context, p engine.Payer) error {
	return createPayer(ctx, ts.tx, p)
}

func (ts *txStore) GetPayer(ctx context.Context, id engine.PayerID) (*engine.Payer, error) {
	return getPayer(ctx, ts.tx, id)
}

func (ts *txStore) UpdatePayer(ctx context.Context, p engine.Payer) error {
	return updatePayer(ctx, ts.tx, p)
}

// DeletePayer has no place inside a payer section; the reference check and
// the delete run unfenced on the parent store.
func (ts *txStore) DeletePayer(ctx context.Context, id engine.PayerID) error {
	return errors.New("delete payer inside a payer section is not supported")
}

func (ts *txStore) ListPayers(ctx context.Context) ([]engine.Payer, error) {
	return ts.parent.ListPayers(ctx)
}

func (ts *txStore) InsertInvoice(ctx context.Context, inv engine.Invoice) error {
	return insertInvoice(ctx, ts.tx, inv)
}

func (ts *txStore) GetInvoice(ctx context.Context, id engine.InvoiceID) (*engine.Invoice, error) {
	return getInvoice(ctx, ts.tx, id)
}

func (ts *txStore) UpdateInvoiceStatus(ctx context.Context, id engine.InvoiceID, status engine.StoredStatus) error {
	return updateInvoiceStatus(ctx, ts.tx, id, status)
}

func (ts *txStore) InvoicesByPayer(ctx context.Context, payerID engine.PayerID) ([]engine.Invoice, error) {
	return invoicesByPayer(ctx, ts.tx, payerID)
}

func (ts *txStore) ListInvoices(ctx context.Context) ([]engine.Invoice, error) {
	return ts.parent.ListInvoices(ctx)
}
