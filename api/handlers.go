/*
handlers.go - HTTP API handlers for the credit engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Payers:
    GET    /api/payers                  List payers with available quota
    POST   /api/payers                  Register payer (pending, quota 0)
    GET    /api/payers/{id}             Payer detail
    DELETE /api/payers/{id}             Delete (refused while invoices exist)
    POST   /api/payers/{id}/decision    Approve/reject with quota
    POST   /api/payers/{id}/restudy     Back to pending
    GET    /api/payers/{id}/invoices    Invoices of payer, derived status

  Invoices:
    POST   /api/invoices                Submit (allocation inside payer lock)
    GET    /api/invoices                List (optional ?client_id=)
    GET    /api/invoices/{id}           Detail, derived status
    POST   /api/invoices/{id}/paid      Mark paid (releases quota)
    POST   /api/invoices/{id}/reopen    Back to stored-current

  Portfolio:
    GET    /api/portfolio/summary       KPI aggregation as of today

ERROR HANDLING:
  Errors map to JSON with appropriate HTTP status:
  - 400: validation
  - 404: payer/invoice not found
  - 409: state conflicts and lock timeouts (timeouts marked retryable)
  - 500: persistence failures

  Allocation outcomes (partial, no quota, not approved) are NOT errors:
  the invoice is created and the outcome travels on the 201 response.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avalia/credit-engine/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     engine.LockingStore
	Submitter *engine.Submitter
	Risk      *engine.RiskService

	// Now is injectable so handler tests can pin the calendar day.
	Now func() engine.Date
}

// NewHandler wires the engine services over the given store.
func NewHandler(store engine.LockingStore) *Handler {
	return &Handler{
		Store:     store,
		Submitter: engine.NewSubmitter(store),
		Risk:      engine.NewRiskService(store),
		Now:       engine.Today,
	}
}

// =============================================================================
// PAYER HANDLERS
// =============================================================================

// ListPayers returns all payers with their available quota as of today.
func (h *Handler) ListPayers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.Now()

	payers, err := h.Store.ListPayers(ctx)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]PayerDTO, 0, len(payers))
	for _, p := range payers {
		invoices, err := h.Store.InvoicesByPayer(ctx, p.ID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		dtos = append(dtos, toPayerDTO(p, engine.AvailableQuota(p, invoices, today)))
	}

	writeJSON(w, http.StatusOK, dtos)
}

// CreatePayer registers a new payer in pending with quota zero.
func (h *Handler) CreatePayer(w http.ResponseWriter, r *http.Request) {
	var req CreatePayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.LegalName == "" {
		writeEngineError(w, &engine.ValidationError{Field: "legal_name", Reason: "required"})
		return
	}

	p := engine.Payer{
		ID:           engine.PayerID(uuid.NewString()),
		LegalName:    req.LegalName,
		ContactEmail: req.ContactEmail,
		RiskStatus:   engine.RiskPending,
		CreatedAt:    h.Now(),
	}

	if err := h.Store.CreatePayer(r.Context(), p); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPayerDTO(p, engine.Money{}))
}

// GetPayer returns one payer with its quota position.
func (h *Handler) GetPayer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := engine.PayerID(chi.URLParam(r, "id"))

	p, err := h.Store.GetPayer(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	invoices, err := h.Store.InvoicesByPayer(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPayerDTO(*p, engine.AvailableQuota(*p, invoices, h.Now())))
}

// DeletePayer removes a payer with no invoices.
func (h *Handler) DeletePayer(w http.ResponseWriter, r *http.Request) {
	id := engine.PayerID(chi.URLParam(r, "id"))

	if err := h.Store.DeletePayer(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

// Decide applies an approve/reject decision to a pending payer.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	id := engine.PayerID(chi.URLParam(r, "id"))

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	decision := engine.Decision{Action: engine.DecisionAction(req.Action)}
	if req.ApprovedQuota != "" {
		quota, err := engine.MoneyFromString(req.ApprovedQuota)
		if err != nil {
			writeEngineError(w, &engine.ValidationError{Field: "approved_quota", Reason: "not a valid amount"})
			return
		}
		decision.ApprovedQuota = quota
	}

	p, err := h.Risk.Decide(r.Context(), id, decision)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPayerDTO(p, p.ApprovedQuota))
}

// Restudy re-opens a decided payer to pending.
func (h *Handler) Restudy(w http.ResponseWriter, r *http.Request) {
	id := engine.PayerID(chi.URLParam(r, "id"))

	p, err := h.Risk.Restudy(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayerDTO(p, engine.Money{}))
}

// PayerInvoices lists the invoices of one payer with derived status.
func (h *Handler) PayerInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := engine.PayerID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetPayer(ctx, id); err != nil {
		writeEngineError(w, err)
		return
	}

	invoices, err := h.Store.InvoicesByPayer(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceDTOs(invoices, h.Now()))
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// SubmitInvoice runs the allocation transaction boundary. An unguaranteed
// invoice is still a 201: the outcome and explanation say why.
func (h *Handler) SubmitInvoice(w http.ResponseWriter, r *http.Request) {
	var req SubmitInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := engine.MoneyFromString(req.Amount)
	if err != nil {
		writeEngineError(w, &engine.ValidationError{Field: "amount", Reason: "not a valid amount"})
		return
	}
	issueDate, err := engine.ParseDate(req.IssueDate)
	if err != nil {
		writeEngineError(w, &engine.ValidationError{Field: "issue_date", Reason: "use YYYY-MM-DD"})
		return
	}
	dueDate, err := engine.ParseDate(req.DueDate)
	if err != nil {
		writeEngineError(w, &engine.ValidationError{Field: "due_date", Reason: "use YYYY-MM-DD"})
		return
	}

	result, err := h.Submitter.SubmitInvoice(r.Context(), engine.SubmitRequest{
		PayerID:        engine.PayerID(req.PayerID),
		ClientID:       engine.ClientID(req.ClientID),
		Number:         req.Number,
		Amount:         amount,
		IssueDate:      issueDate,
		DueDate:        dueDate,
		WantsGuarantee: req.WantsGuarantee,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitInvoiceResponse{
		Invoice:          toInvoiceDTO(result.Invoice, h.Now()),
		Outcome:          string(result.Allocation.Outcome),
		IsGuaranteed:     result.Allocation.IsGuaranteed,
		GuaranteedAmount: result.Allocation.GuaranteedAmount.String(),
		Explanation:      result.Allocation.Explanation(),
	})
}

// ListInvoices returns all invoices, optionally filtered by client.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Store.ListInvoices(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if clientID := r.URL.Query().Get("client_id"); clientID != "" {
		filtered := invoices[:0]
		for _, inv := range invoices {
			if inv.ClientID == engine.ClientID(clientID) {
				filtered = append(filtered, inv)
			}
		}
		invoices = filtered
	}

	writeJSON(w, http.StatusOK, toInvoiceDTOs(invoices, h.Now()))
}

// GetInvoice returns one invoice with derived status.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := engine.InvoiceID(chi.URLParam(r, "id"))

	inv, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv, h.Now()))
}

// MarkPaid flips the invoice to paid, releasing its guarantee.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id := engine.InvoiceID(chi.URLParam(r, "id"))

	inv, err := h.Submitter.MarkPaid(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, h.Now()))
}

// ReopenInvoice returns a paid invoice to stored-current.
func (h *Handler) ReopenInvoice(w http.ResponseWriter, r *http.Request) {
	id := engine.InvoiceID(chi.URLParam(r, "id"))

	inv, err := h.Submitter.Reopen(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, h.Now()))
}

// =============================================================================
// PORTFOLIO HANDLERS
// =============================================================================

// PortfolioSummary aggregates all invoices as of today.
func (h *Handler) PortfolioSummary(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Store.ListInvoices(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(engine.Summarize(invoices, h.Now())))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps the engine's error taxonomy onto HTTP.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: err.Error(), Code: "validation",
		})
	case engine.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: err.Error(), Code: "not_found",
		})
	case errors.Is(err, engine.ErrLockTimeout):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(), Code: "lock_timeout", Retryable: true,
		})
	case engine.IsConflict(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(), Code: "conflict",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(), Code: "persistence",
		})
	}
}
