/*
errors.go - Centralized error types for the credit engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers distinguish four categories: validation (recoverable, resubmit
  corrected input), not-found, lock timeout (transient, safe to retry the
  whole submission), and persistence (non-retryable, nothing was committed).

NOT ERRORS:
  Allocation outcomes such as "payer not approved" or "no quota available"
  are NOT errors. The invoice is still created, unguaranteed; those results
  travel on the success path as Allocation.Outcome (see allocator.go).

USAGE:
  if engine.IsRetryable(err) {
      // resubmit from scratch; nothing was committed
  }

SEE ALSO:
  - submit.go: Produces lock timeout and persistence errors
  - workflow.go: Produces transition errors
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPayerNotFound is returned when a referenced payer doesn't exist.
	ErrPayerNotFound = errors.New("payer not found")

	// ErrInvoiceNotFound is returned when a referenced invoice doesn't exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrPayerHasInvoices is returned when deleting a payer that still has
	// invoices referencing it.
	ErrPayerHasInvoices = errors.New("payer has invoices")

	// ErrLockTimeout is returned when the per-payer critical section could
	// not be acquired within the bounded wait. Nothing was committed; the
	// whole operation is safe to retry.
	ErrLockTimeout = errors.New("payer lock acquisition timed out")

	// ErrInvalidTransition is returned on a risk status transition the
	// workflow does not permit.
	ErrInvalidTransition = errors.New("invalid risk status transition")

	// ErrValidation is the sentinel wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence is the sentinel wrapped by every *PersistenceError.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed or out-of-range input. Rejected before
// any side effect; the caller can resubmit corrected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PersistenceError reports a storage failure inside the critical section.
// The transaction was rolled back: no invoice row exists and no quota was
// consumed. Not retryable without investigation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// Cause returns the underlying storage error.
func (e *PersistenceError) Cause() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the whole operation can safely be rerun.
// Recomputation is idempotent since nothing was committed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// IsValidation returns true if the error is due to invalid caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPayerNotFound) ||
		errors.Is(err, ErrInvoiceNotFound)
}

// IsConflict returns true for state conflicts that are not input errors:
// disallowed workflow transitions and blocked deletions.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrPayerHasInvoices)
}
