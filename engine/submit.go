/*
submit.go - Allocation transaction boundary

PURPOSE:
  Makes the quota read, the guarantee decision, and the invoice insert
  atomic with respect to any other concurrent allocation against the same
  payer. Without this, two concurrent submissions each computing available
  quota from a stale read can both be told "full guarantee available" and
  jointly overcommit the payer's quota.

FLOW:
  1. Validate input (no side effects on rejection)
  2. Acquire the payer's exclusive section (bounded wait)
  3. Re-read payer + invoices INSIDE the section
  4. Allocate, build the invoice, insert
  5. Release; commit happened iff every step succeeded

FAILURE SEMANTICS:
  - Lock wait expires        -> ErrLockTimeout, retryable from scratch
  - Any in-section failure   -> *PersistenceError, rolled back, no invoice
    row and no quota consumed
  - Unguaranteed outcomes are NOT failures: the invoice is created under
    custody and the outcome travels on the success path

SEE ALSO:
  - allocator.go: The pure decision this wraps
  - store.go: WithPayerLock contract
*/
package engine

import (
	"context"

	"github.com/google/uuid"
)

// =============================================================================
// SUBMISSION - Inputs and result
// =============================================================================

// SubmitRequest is what the submission surface supplies.
type SubmitRequest struct {
	PayerID        PayerID
	ClientID       ClientID
	Number         string
	Amount         Money
	IssueDate      Date
	DueDate        Date
	WantsGuarantee bool
}

// SubmitResult is the created invoice plus the allocation that sized its
// guarantee, including the user-facing explanation inputs.
type SubmitResult struct {
	Invoice    Invoice
	Allocation Allocation
}

// =============================================================================
// SUBMITTER
// =============================================================================

// Submitter is the allocation transaction boundary. Now and NewID are
// injectable for tests; production uses the local calendar day and UUIDs.
type Submitter struct {
	Store LockingStore
	Now   func() Date
	NewID func() InvoiceID
}

func NewSubmitter(store LockingStore) *Submitter {
	return &Submitter{
		Store: store,
		Now:   Today,
		NewID: func() InvoiceID { return InvoiceID(uuid.NewString()) },
	}
}

// SubmitInvoice validates the request, then runs allocate + insert inside
// the payer's critical section. An unguaranteed invoice is a valid,
// persisted outcome, not an error.
func (s *Submitter) SubmitInvoice(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if err := validateSubmit(req); err != nil {
		return SubmitResult{}, err
	}

	today := s.Now()
	var result SubmitResult

	err := s.Store.WithPayerLock(ctx, req.PayerID, func(tx Store) error {
		payer, err := tx.GetPayer(ctx, req.PayerID)
		if err != nil {
			return err
		}

		// Quota state must come from inside the section.
		invoices, err := tx.InvoicesByPayer(ctx, req.PayerID)
		if err != nil {
			return &PersistenceError{Op: "read payer invoices", Err: err}
		}

		alloc := Allocate(*payer, invoices, req.Amount, req.WantsGuarantee, today)

		inv := Invoice{
			ID:               s.NewID(),
			Number:           req.Number,
			PayerID:          req.PayerID,
			ClientID:         req.ClientID,
			Amount:           req.Amount,
			IssueDate:        req.IssueDate,
			DueDate:          req.DueDate,
			StoredStatus:     StatusCurrent,
			IsGuaranteed:     alloc.IsGuaranteed,
			GuaranteedAmount: alloc.GuaranteedAmount,
			CreatedAt:        today,
		}

		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return &PersistenceError{Op: "insert invoice", Err: err}
		}

		result = SubmitResult{Invoice: inv, Allocation: alloc}
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}
	return result, nil
}

// MarkPaid flips the invoice to paid, releasing its guaranteed amount back
// to the payer's pool immediately. Runs under the payer's section so the
// release serializes with concurrent allocations.
func (s *Submitter) MarkPaid(ctx context.Context, id InvoiceID) (Invoice, error) {
	return s.setStatus(ctx, id, StatusPaid)
}

// Reopen returns a paid invoice to stored-current. Whether it then shows
// as current or overdue is derived from its due date, never stored.
func (s *Submitter) Reopen(ctx context.Context, id InvoiceID) (Invoice, error) {
	return s.setStatus(ctx, id, StatusCurrent)
}

func (s *Submitter) setStatus(ctx context.Context, id InvoiceID, status StoredStatus) (Invoice, error) {
	// Unfenced read just to find the owning payer; the write re-reads
	// inside the section.
	inv, err := s.Store.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}

	var updated Invoice
	err = s.Store.WithPayerLock(ctx, inv.PayerID, func(tx Store) error {
		current, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.UpdateInvoiceStatus(ctx, id, status); err != nil {
			return &PersistenceError{Op: "update invoice status", Err: err}
		}
		current.StoredStatus = status
		updated = *current
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return updated, nil
}

// =============================================================================
// VALIDATION - Rejected before any side effect
// =============================================================================

func validateSubmit(req SubmitRequest) error {
	if req.PayerID == "" {
		return &ValidationError{Field: "payer_id", Reason: "required"}
	}
	if req.Number == "" {
		return &ValidationError{Field: "number", Reason: "required"}
	}
	if !req.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if req.IssueDate.IsZero() || req.DueDate.IsZero() {
		return &ValidationError{Field: "dates", Reason: "issue and due dates are required"}
	}
	if req.DueDate.Before(req.IssueDate) {
		return &ValidationError{Field: "due_date", Reason: "must not be before issue date"}
	}
	return nil
}
