/*
Package engine provides the credit exposure and guarantee allocation core.

PURPOSE:
  This package contains the domain types and algorithms of an invoice
  factoring platform's risk engine: payer credit quotas, invoice guarantee
  allocation, derived invoice status, and the serialization boundary that
  keeps concurrent submissions from overcommitting a payer's quota.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: An exact monetary amount (decimal, no floating-point drift)
  - Payer: The debtor company with a risk status and an approved quota
  - Invoice: One financed invoice, guarantee decision fixed at creation
  - DisplayStatus: Derived lifecycle state (current / overdue / paid)

DESIGN PRINCIPLES:
  1. Immutability: An invoice's amount and guarantee are fixed at creation
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Derivation: "Overdue" is never stored, always computed from due date
  4. Explicit time: Pure functions take `today` as a parameter, never the clock

USAGE:
  avail := engine.AvailableQuota(payer, invoices, engine.Today())
  alloc := engine.Allocate(payer, invoices, amount, true, engine.Today())

SEE ALSO:
  - status.go: Derived status resolution
  - ledger.go: Available quota computation
  - allocator.go: Guarantee allocation decision
  - submit.go: Per-payer atomic submission boundary
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact monetary amount (single currency, minor units)
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(minorUnits int64) Money {
	return Money{Value: decimal.NewFromInt(minorUnits)}
}

func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d}, nil
}

// MustMoney parses s or returns zero. For constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money            { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money            { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money                   { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool                 { return m.Value.IsZero() }
func (m Money) IsNegative() bool             { return m.Value.IsNegative() }
func (m Money) IsPositive() bool             { return m.Value.IsPositive() }
func (m Money) GreaterThan(o Money) bool     { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool        { return m.Value.LessThan(o.Value) }
func (m Money) GreaterOrEqual(o Money) bool  { return m.Value.GreaterThanOrEqual(o.Value) }
func (m Money) Equal(o Money) bool           { return m.Value.Equal(o.Value) }
func (m Money) Min(o Money) Money            { if m.LessThan(o) { return m }; return o }
func (m Money) Max(o Money) Money            { if m.GreaterThan(o) { return m }; return o }
func (m Money) String() string               { return m.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PayerID string
type InvoiceID string
type ClientID string

// =============================================================================
// PAYER - Debtor entity with risk status and approved quota
// =============================================================================

type RiskStatus string

const (
	RiskPending  RiskStatus = "pending"
	RiskApproved RiskStatus = "approved"
	RiskRejected RiskStatus = "rejected"
)

// Payer is the debtor company against whose future payment invoices are
// financed. ApprovedQuota is meaningful only while RiskStatus is approved;
// the ledger treats any other status as zero capacity regardless of the
// stored value.
//
// RiskStatus and ApprovedQuota are written exclusively by the risk decision
// workflow (workflow.go). Everything else reads them.
type Payer struct {
	ID            PayerID
	LegalName     string
	ContactEmail  string
	RiskStatus    RiskStatus
	ApprovedQuota Money
	CreatedAt     Date
}

// =============================================================================
// INVOICE - One financed invoice, guarantee fixed at creation
// =============================================================================

// StoredStatus is what is persisted for an invoice. "Overdue" is never
// stored; it is derived from DueDate (see status.go).
type StoredStatus string

const (
	StatusCurrent StoredStatus = "current"
	StatusPaid    StoredStatus = "paid"
)

// DisplayStatus is the derived lifecycle state shown to callers.
type DisplayStatus string

const (
	DisplayCurrent DisplayStatus = "current"
	DisplayOverdue DisplayStatus = "overdue"
	DisplayPaid    DisplayStatus = "paid"
)

// Invoice references exactly one payer and one submitting client.
// Amount, dates, and the guarantee decision are fixed atomically at
// creation; only StoredStatus is mutated afterward (paid/reopen toggles).
//
// INVARIANTS:
//   - GuaranteedAmount is in [0, Amount] and never changes
//   - IsGuaranteed == (GuaranteedAmount > 0)
//   - Later quota changes on the payer never touch existing invoices
type Invoice struct {
	ID               InvoiceID
	Number           string
	PayerID          PayerID
	ClientID         ClientID
	Amount           Money
	IssueDate        Date
	DueDate          Date
	StoredStatus     StoredStatus
	IsGuaranteed     bool
	GuaranteedAmount Money
	CreatedAt        Date
}
