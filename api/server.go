/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the POS frontend

ROUTE GROUPS:
  /api/parties/*        Party directory
  /api/{kind}/*         advances, receivables, payments
  /api/admin/*          Admin operations

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

// NewRouter creates a new router with all routes configured. An empty
// origins list falls back to the local frontend dev servers.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor", "X-Admin"},
		ExposedHeaders:   []string{"X-Cache"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/parties", func(r chi.Router) {
			r.Get("/", h.ListParties)
			r.Post("/", h.CreateParty)
			r.Get("/{id}", h.GetParty)
			r.Post("/{id}/deactivate", h.DeactivateParty)
			r.Post("/{id}/activate", h.ActivateParty)
			r.Get("/{id}/headroom", h.GetHeadroom)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/overdue-scan", h.ScanOverdue)
		})

		r.Route("/{kind:(advances|receivables|payments)}", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.CreateEntry)
			r.Get("/overdue", h.GetOverdue)
			r.Get("/top", h.GetTopRecipients)
			r.Get("/totals/{partyID}", h.GetTotals)
			r.Get("/{id}", h.GetEntry)
			r.Post("/{id}/payments", h.RecordCounterPayment)
			r.Put("/{id}/principal", h.UpdatePrincipal)
			r.Delete("/{id}", h.SoftDelete)
			r.Post("/{id}/restore", h.Restore)
			r.Post("/{id}/settle", h.SettlePayment)
			r.Delete("/{id}/permanent", h.HardDelete)
		})
	})

	return r
}
