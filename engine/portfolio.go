/*
portfolio.go - Read-only KPI aggregation

PURPOSE:
  Summarizes an invoice portfolio for dashboards: counts and value per
  derived status, outstanding guaranteed exposure, guarantee coverage, and
  monthly issuance. Pure over the invoice slice and an explicit `today`,
  so any caller aggregating the same set on the same day gets identical
  numbers.
*/
package engine

// PortfolioSummary is the KPI view of a set of invoices as of one day.
type PortfolioSummary struct {
	AsOf Date

	CurrentCount int
	OverdueCount int
	PaidCount    int

	CurrentValue Money
	OverdueValue Money

	// TotalPortfolio is the active book: current plus overdue value.
	TotalPortfolio Money

	// OutstandingGuaranteed is guaranteed exposure not yet paid.
	OutstandingGuaranteed Money

	// CoveragePercent is outstanding guaranteed over the active book,
	// rounded to a whole percent. Zero for an empty book.
	CoveragePercent int

	// MonthlyIssuance buckets invoice amounts by issue month ("YYYY-MM").
	MonthlyIssuance map[string]Money
}

// Summarize aggregates invoices with every status derived through the one
// status resolver.
func Summarize(invoices []Invoice, today Date) PortfolioSummary {
	sum := PortfolioSummary{
		AsOf:            today,
		MonthlyIssuance: make(map[string]Money),
	}

	for _, inv := range invoices {
		switch ResolveStatus(inv, today) {
		case DisplayPaid:
			sum.PaidCount++
		case DisplayOverdue:
			sum.OverdueCount++
			sum.OverdueValue = sum.OverdueValue.Add(inv.Amount)
		default:
			sum.CurrentCount++
			sum.CurrentValue = sum.CurrentValue.Add(inv.Amount)
		}

		key := inv.IssueDate.MonthKey()
		sum.MonthlyIssuance[key] = sum.MonthlyIssuance[key].Add(inv.Amount)
	}

	sum.TotalPortfolio = sum.CurrentValue.Add(sum.OverdueValue)
	sum.OutstandingGuaranteed = OutstandingExposure(invoices, today)

	if sum.TotalPortfolio.IsPositive() {
		pct := sum.OutstandingGuaranteed.Value.
			Div(sum.TotalPortfolio.Value).
			Mul(hundred).
			Round(0)
		sum.CoveragePercent = int(pct.IntPart())
	}
	return sum
}

var hundred = NewMoney(100).Value
