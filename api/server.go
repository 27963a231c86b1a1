/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/exchanges/*      Exchange (drop ticket) lifecycle
  /api/accounts/*       Account validation and transfer
  /api/parties/*        Party management
  /api/relations/*      Party-to-ticket links
  /api/carriers/*       Carrier directory
  /api/communications/* SLA-tracked carrier messaging
  /api/events/*         Event history and live SSE stream
  /api/analytics        Dashboard metrics
  /api/realtime/*       Connection manager state
  /api/reset            Repository reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Exchange routes
		r.Route("/exchanges", func(r chi.Router) {
			r.Get("/", h.ListExchanges)
			r.Post("/", h.SubmitExchange)
			r.Get("/{id}", h.GetExchange)
			r.Post("/{id}/status", h.UpdateExchangeStatus)
			r.Post("/{id}/override", h.ApplyOverride)
			r.Get("/{id}/accounts", h.ExchangeAccounts)
			r.Get("/{id}/relations", h.ExchangeRelations)
			r.Get("/{id}/communications", h.ExchangeCommunications)
			r.Get("/{id}/audit", h.ExchangeAuditTrail)
		})

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Get("/{id}", h.GetAccount)
			r.Post("/{id}/status", h.UpdateAccountStatus)
		})

		// Party routes
		r.Route("/parties", func(r chi.Router) {
			r.Get("/", h.ListParties)
			r.Post("/", h.CreateParty)
		})

		// Relation routes
		r.Route("/relations", func(r chi.Router) {
			r.Get("/", h.ListRelations)
			r.Post("/", h.CreateRelation)
		})

		// Carrier routes
		r.Get("/carriers", h.ListCarriers)

		// Communication routes
		r.Route("/communications", func(r chi.Router) {
			r.Post("/", h.SendCommunication)
			r.Post("/{id}/response", h.RecordResponse)
		})

		// Event routes
		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Get("/stream", h.StreamEvents)
		})

		// Analytics
		r.Get("/analytics", h.GetAnalytics)

		// Realtime connection state
		r.Route("/realtime", func(r chi.Router) {
			r.Get("/", h.GetRealtimeState)
			r.Post("/reconnect", h.Reconnect)
		})

		// Reset (dev only)
		r.Post("/reset", h.ResetRepository)
	})

	return r
}
