/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/accounts/*         Account balances, history, reconciliation
  /api/recognitions       Peer recognition
  /api/posts              Recognition feed
  /api/budget-requests/*  Grant request workflow
  /api/redemptions        Reward redemption
  /api/positions/*        Position budgets
  /api/config             Points policy
  /api/scenarios/*        Demo scenarios

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Get("/{id}/redemptions", h.GetRedemptions)
			r.Get("/{id}/reconcile", h.ReconcileAccount)
			r.Post("/{id}/refresh", h.RefreshAllowance)
		})

		// Recognition routes
		r.Post("/recognitions", h.SendRecognition)
		r.Get("/posts", h.ListPosts)

		// Budget request routes
		r.Route("/budget-requests", func(r chi.Router) {
			r.Post("/", h.SubmitBudgetRequest)
			r.Get("/pending", h.ListPendingBudgetRequests)
			r.Post("/{id}/approve", h.ApproveBudgetRequest)
			r.Post("/{id}/reject", h.RejectBudgetRequest)
		})

		// Position routes
		r.Get("/positions/{id}", h.GetPosition)

		// Redemption routes
		r.Post("/redemptions", h.RedeemReward)

		// Config routes
		r.Route("/config", func(r chi.Router) {
			r.Get("/", h.GetConfig)
			r.Put("/", h.PutConfig)
			r.Post("/reload", h.ReloadConfig)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
