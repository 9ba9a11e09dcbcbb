/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Wire shapes for the submission, risk decision, and listing surfaces.
  Monetary values travel as decimal strings so no precision is lost in
  JSON; dates travel as YYYY-MM-DD.

SEE ALSO:
  - handlers.go: Handler implementations using these DTOs
*/
package api

import (
	"github.com/avalia/credit-engine/engine"
)

// =============================================================================
// PAYER DTOs
// =============================================================================

// CreatePayerRequest registers a new payer to be studied.
type CreatePayerRequest struct {
	LegalName    string `json:"legal_name"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// PayerDTO is a payer with its quota position as of the request day.
type PayerDTO struct {
	ID             string `json:"id"`
	LegalName      string `json:"legal_name"`
	ContactEmail   string `json:"contact_email,omitempty"`
	RiskStatus     string `json:"risk_status"`
	ApprovedQuota  string `json:"approved_quota"`
	AvailableQuota string `json:"available_quota"`
	CreatedAt      string `json:"created_at"`
}

// DecisionRequest carries an administrative approve/reject decision.
type DecisionRequest struct {
	Action        string `json:"action"`                   // "approve" | "reject"
	ApprovedQuota string `json:"approved_quota,omitempty"` // required to approve
}

// =============================================================================
// INVOICE DTOs
// =============================================================================

// SubmitInvoiceRequest is what the submission surface supplies.
type SubmitInvoiceRequest struct {
	Number         string `json:"number"`
	PayerID        string `json:"payer_id"`
	ClientID       string `json:"client_id"`
	Amount         string `json:"amount"`
	IssueDate      string `json:"issue_date"` // YYYY-MM-DD
	DueDate        string `json:"due_date"`   // YYYY-MM-DD
	WantsGuarantee bool   `json:"wants_guarantee"`
}

// InvoiceDTO is an invoice with its derived display status.
type InvoiceDTO struct {
	ID               string `json:"id"`
	Number           string `json:"number"`
	PayerID          string `json:"payer_id"`
	ClientID         string `json:"client_id"`
	Amount           string `json:"amount"`
	IssueDate        string `json:"issue_date"`
	DueDate          string `json:"due_date"`
	StoredStatus     string `json:"stored_status"`
	DisplayStatus    string `json:"display_status"`
	DaysOverdue      int    `json:"days_overdue"`
	IsGuaranteed     bool   `json:"is_guaranteed"`
	GuaranteedAmount string `json:"guaranteed_amount"`
	CreatedAt        string `json:"created_at"`
}

// SubmitInvoiceResponse is the submission outcome. Partial and no-quota
// results carry a distinct explanation; the caller must not present a
// partial guarantee as a full one.
type SubmitInvoiceResponse struct {
	Invoice          InvoiceDTO `json:"invoice"`
	Outcome          string     `json:"outcome"`
	IsGuaranteed     bool       `json:"is_guaranteed"`
	GuaranteedAmount string     `json:"guaranteed_amount"`
	Explanation      string     `json:"explanation"`
}

// =============================================================================
// PORTFOLIO DTOs
// =============================================================================

type PortfolioSummaryDTO struct {
	AsOf                  string            `json:"as_of"`
	CurrentCount          int               `json:"current_count"`
	OverdueCount          int               `json:"overdue_count"`
	PaidCount             int               `json:"paid_count"`
	CurrentValue          string            `json:"current_value"`
	OverdueValue          string            `json:"overdue_value"`
	TotalPortfolio        string            `json:"total_portfolio"`
	OutstandingGuaranteed string            `json:"outstanding_guaranteed"`
	CoveragePercent       int               `json:"coverage_percent"`
	MonthlyIssuance       map[string]string `json:"monthly_issuance"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPayerDTO(p engine.Payer, available engine.Money) PayerDTO {
	return PayerDTO{
		ID:             string(p.ID),
		LegalName:      p.LegalName,
		ContactEmail:   p.ContactEmail,
		RiskStatus:     string(p.RiskStatus),
		ApprovedQuota:  p.ApprovedQuota.String(),
		AvailableQuota: available.String(),
		CreatedAt:      p.CreatedAt.String(),
	}
}

func toInvoiceDTO(inv engine.Invoice, today engine.Date) InvoiceDTO {
	return InvoiceDTO{
		ID:               string(inv.ID),
		Number:           inv.Number,
		PayerID:          string(inv.PayerID),
		ClientID:         string(inv.ClientID),
		Amount:           inv.Amount.String(),
		IssueDate:        inv.IssueDate.String(),
		DueDate:          inv.DueDate.String(),
		StoredStatus:     string(inv.StoredStatus),
		DisplayStatus:    string(engine.ResolveStatus(inv, today)),
		DaysOverdue:      engine.DaysOverdue(inv, today),
		IsGuaranteed:     inv.IsGuaranteed,
		GuaranteedAmount: inv.GuaranteedAmount.String(),
		CreatedAt:        inv.CreatedAt.String(),
	}
}

func toInvoiceDTOs(invoices []engine.Invoice, today engine.Date) []InvoiceDTO {
	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv, today)
	}
	return dtos
}

func toSummaryDTO(s engine.PortfolioSummary) PortfolioSummaryDTO {
	monthly := make(map[string]string, len(s.MonthlyIssuance))
	for k, v := range s.MonthlyIssuance {
		monthly[k] = v.String()
	}
	return PortfolioSummaryDTO{
		AsOf:                  s.AsOf.String(),
		CurrentCount:          s.CurrentCount,
		OverdueCount:          s.OverdueCount,
		PaidCount:             s.PaidCount,
		CurrentValue:          s.CurrentValue.String(),
		OverdueValue:          s.OverdueValue.String(),
		TotalPortfolio:        s.TotalPortfolio.String(),
		OutstandingGuaranteed: s.OutstandingGuaranteed.String(),
		CoveragePercent:       s.CoveragePercent,
		MonthlyIssuance:       monthly,
	}
}
