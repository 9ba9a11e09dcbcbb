/*
ledger.go - Quota ledger: available capacity from outstanding exposure

PURPOSE:
  Computes a payer's currently available quota. Exposure is never stored as
  a running counter; it is recomputed from the invoice set on every call.
  This trades a small recomputation cost for the elimination of
  counter-drift bugs: the invoice rows are the source of truth.

RULES:
  - A payer that is not approved has zero capacity, whatever quota value
    its record still carries from a prior cycle.
  - Only outstanding guaranteed exposure counts: guaranteed invoices not
    yet marked paid. Marking an invoice paid releases its guaranteed
    amount back to the pool immediately.
  - Overdue invoices still count as outstanding. Being overdue is a
    collections problem, not an automatic quota release.

SEE ALSO:
  - allocator.go: Consumes AvailableQuota to size a guarantee
  - submit.go: Calls this inside the per-payer critical section
*/
package engine

// OutstandingExposure sums the guaranteed amounts of the payer's invoices
// that are guaranteed and not resolved as paid on the given day.
func OutstandingExposure(invoices []Invoice, today Date) Money {
	var used Money
	for _, inv := range invoices {
		if !inv.IsGuaranteed {
			continue
		}
		if ResolveStatus(inv, today) == DisplayPaid {
			continue
		}
		used = used.Add(inv.GuaranteedAmount)
	}
	return used
}

// AvailableQuota returns the payer's remaining guarantee capacity on the
// given day, clamped at zero. Pure and idempotent: rerunning it on an
// unchanged invoice set yields the same value.
func AvailableQuota(p Payer, invoices []Invoice, today Date) Money {
	if p.RiskStatus != RiskApproved {
		return Money{}
	}
	avail := p.ApprovedQuota.Sub(OutstandingExposure(invoices, today))
	if avail.IsNegative() {
		return Money{}
	}
	return avail
}
