/*
status.go - Derived invoice status

PURPOSE:
  The single source of truth for an invoice's displayed lifecycle state.
  Every caller (list views, detail views, KPI aggregation) derives status
  through ResolveStatus with the same explicit `today`, so no two views of
  the same invoice can disagree on the same day.

WHY DERIVED:
  Only `current` and `paid` are ever persisted. "Overdue" is a function of
  the due date and the calendar, not a fact to store: a stored overdue flag
  drifts the moment midnight passes. Deriving it means the passage of time
  never requires a write.

SEE ALSO:
  - ledger.go: Uses ResolveStatus to decide which invoices consume quota
  - portfolio.go: Uses ResolveStatus for KPI buckets
*/
package engine

// ResolveStatus derives the displayed lifecycle state from stored fields
// and the given calendar day. Pure: same inputs, same result, no mutation.
//
// Paid is terminal and overrides the date comparison. Otherwise the invoice
// is overdue once its due date is strictly before today.
func ResolveStatus(inv Invoice, today Date) DisplayStatus {
	if inv.StoredStatus == StatusPaid {
		return DisplayPaid
	}
	if inv.DueDate.Before(today) {
		return DisplayOverdue
	}
	return DisplayCurrent
}

// DaysOverdue returns the whole days past due, and 0 for any invoice that
// does not resolve to overdue.
func DaysOverdue(inv Invoice, today Date) int {
	if ResolveStatus(inv, today) != DisplayOverdue {
		return 0
	}
	return DaysBetween(inv.DueDate, today)
}
