/*
allocator.go - Guarantee allocation decision

PURPOSE:
  Decides, for a new invoice, whether the platform guarantees it in full,
  partially up to the payer's remaining quota, or not at all. A zero
  guarantee is not an error: the invoice is still created and stored under
  custody, and the outcome tells the caller why.

DECISION ORDER (first match wins):
  1. Guarantee not requested        -> none_not_requested
  2. Payer not approved             -> none_not_approved
  3. available >= requested         -> full
     0 < available < requested      -> partial (exactly the available quota)
     available == 0                 -> none_no_quota

The guaranteed amount is granted exactly, unrounded: partial guarantees get
the available quota to the minor unit.

SEE ALSO:
  - ledger.go: AvailableQuota
  - submit.go: Runs Allocate inside the per-payer critical section
*/
package engine

import "fmt"

// =============================================================================
// OUTCOME
// =============================================================================

type Outcome string

const (
	OutcomeFull         Outcome = "full"
	OutcomePartial      Outcome = "partial"
	OutcomeNoQuota      Outcome = "none_no_quota"
	OutcomeNotApproved  Outcome = "none_not_approved"
	OutcomeNotRequested Outcome = "none_not_requested"
)

// Allocation is the result of a guarantee decision. IsGuaranteed is always
// GuaranteedAmount > 0; the three "none" outcomes differ only in the
// user-facing explanation.
type Allocation struct {
	Outcome          Outcome
	GuaranteedAmount Money
	IsGuaranteed     bool

	// Inputs echoed for explanation and auditing.
	Requested       Money
	AvailableBefore Money
}

// =============================================================================
// ALLOCATOR
// =============================================================================

// Allocate sizes the guarantee for a new invoice of `requested` against the
// payer's current invoice set. Pure: it computes a decision and mutates
// nothing. Callers that persist the result must hold the payer's critical
// section so the invoice set cannot change underneath (see submit.go).
func Allocate(p Payer, invoices []Invoice, requested Money, wantsGuarantee bool, today Date) Allocation {
	alloc := Allocation{Requested: requested}

	if !wantsGuarantee {
		alloc.Outcome = OutcomeNotRequested
		return alloc
	}
	if p.RiskStatus != RiskApproved {
		alloc.Outcome = OutcomeNotApproved
		return alloc
	}

	avail := AvailableQuota(p, invoices, today)
	alloc.AvailableBefore = avail

	switch {
	case avail.GreaterOrEqual(requested):
		alloc.Outcome = OutcomeFull
		alloc.GuaranteedAmount = requested
	case avail.IsPositive():
		alloc.Outcome = OutcomePartial
		alloc.GuaranteedAmount = avail
	default:
		alloc.Outcome = OutcomeNoQuota
	}

	alloc.IsGuaranteed = alloc.GuaranteedAmount.IsPositive()
	return alloc
}

// Explanation returns the user-facing message for this allocation. Partial
// and no-quota results are worded distinctly from full so the caller never
// silently presents a partial guarantee as a full one.
func (a Allocation) Explanation() string {
	switch a.Outcome {
	case OutcomeFull:
		return "Invoice guaranteed in full."
	case OutcomePartial:
		return fmt.Sprintf("Invoice partially guaranteed due to quota limit (%s of %s).",
			a.GuaranteedAmount, a.Requested)
	case OutcomeNoQuota:
		return "No quota available. Invoice stored under custody."
	case OutcomeNotApproved:
		return "Payer is not approved for guarantees. Invoice stored under custody."
	default:
		return "Invoice stored under custody without guarantee."
	}
}
