/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the web frontends

SECURITY NOTE:
  No authentication middleware. Identity and session management are
  external collaborators of this engine.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Payer routes
		r.Route("/payers", func(r chi.Router) {
			r.Get("/", h.ListPayers)
			r.Post("/", h.CreatePayer)
			r.Get("/{id}", h.GetPayer)
			r.Delete("/{id}", h.DeletePayer)
			r.Post("/{id}/decision", h.Decide)
			r.Post("/{id}/restudy", h.Restudy)
			r.Get("/{id}/invoices", h.PayerInvoices)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.SubmitInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Post("/{id}/paid", h.MarkPaid)
			r.Post("/{id}/reopen", h.ReopenInvoice)
		})

		// Portfolio routes
		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/summary", h.PortfolioSummary)
		})
	})

	return r
}
