/*
store.go - Persistence interface for payers and invoices

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:        Payer/invoice reads and writes
  LockingStore: Store plus the per-payer critical section

CRITICAL SECTION CONTRACT (WithPayerLock):
  - Exclusive per payer id; submissions for different payers never block
    each other.
  - The invoice set used for quota computation is re-read INSIDE the
    section, never from a stale pre-lock read.
  - Bounded wait: acquisition past the configured wait fails with
    ErrLockTimeout and nothing is committed.
  - If fn returns an error, every write made through the handed-in Store
    is rolled back: all or nothing.

MUTATION SURFACE:
  Invoices are inserted once with their guarantee decision fixed.
  UpdateInvoiceStatus flips only StoredStatus (paid/reopen); no other
  invoice field has a write path. DeletePayer refuses while invoices
  reference the payer.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite-backed store
  - engine/store/memory.go: In-memory store for tests and dev

SEE ALSO:
  - submit.go: The main consumer of WithPayerLock
  - locks.go: The bounded-wait lock table shared by implementations
*/
package engine

import "context"

// =============================================================================
// STORE - Payer and invoice persistence
// =============================================================================

// Store handles persistence of payers and invoices. Missing records surface
// as ErrPayerNotFound / ErrInvoiceNotFound.
type Store interface {
	CreatePayer(ctx context.Context, p Payer) error
	GetPayer(ctx context.Context, id PayerID) (*Payer, error)

	// UpdatePayer rewrites a payer record. Callers of the risk workflow
	// must hold the payer's critical section.
	UpdatePayer(ctx context.Context, p Payer) error

	// DeletePayer removes a payer with no invoices. Returns
	// ErrPayerHasInvoices while any invoice references it.
	DeletePayer(ctx context.Context, id PayerID) error

	ListPayers(ctx context.Context) ([]Payer, error)

	// InsertInvoice persists a new invoice with its guarantee decision.
	// The only write path for amount, dates, and guarantee fields.
	InsertInvoice(ctx context.Context, inv Invoice) error

	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)

	// UpdateInvoiceStatus flips StoredStatus (paid / reopen). Nothing else.
	UpdateInvoiceStatus(ctx context.Context, id InvoiceID, status StoredStatus) error

	// InvoicesByPayer returns all invoices referencing the payer.
	InvoicesByPayer(ctx context.Context, payerID PayerID) ([]Invoice, error)

	ListInvoices(ctx context.Context) ([]Invoice, error)
}

// =============================================================================
// LOCKING STORE - Store plus the per-payer critical section
// =============================================================================

// LockingStore is what the submission boundary and the risk workflow
// require: reads and writes that can be fenced per payer.
type LockingStore interface {
	Store

	// WithPayerLock runs fn while holding the payer's exclusive section.
	// fn receives a Store whose writes commit only if fn returns nil.
	// Acquisition past the bounded wait returns ErrLockTimeout.
	WithPayerLock(ctx context.Context, payerID PayerID, fn func(Store) error) error
}
