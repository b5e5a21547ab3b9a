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
  /api/accounts/*      Beneficiary accounts and history
  /api/withdrawals/*   Withdrawal workflow
  /api/cash-send/*     Voucher issue and redemption
  /api/electricity/*   Prepaid token purchases
  /api/grants/*        Grant enrollments
  /api/admin/*         Deposits and maintenance sweeps

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  Front it with an authenticating gateway before any real deployment.

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
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Get("/{id}/withdrawals", h.ListAccountWithdrawals)
			r.Get("/{id}/vouchers", h.ListAccountVouchers)
			r.Get("/{id}/tokens", h.ListAccountTokens)
			r.Get("/{id}/grants", h.ListAccountGrants)
		})

		// Withdrawal routes
		r.Route("/withdrawals", func(r chi.Router) {
			r.Post("/", h.CreateWithdrawal)
			r.Get("/quote", h.WithdrawalQuote)
			r.Get("/{id}", h.GetWithdrawal)
			r.Post("/{id}/approve", h.ApproveWithdrawal)
			r.Post("/{id}/process", h.ProcessWithdrawal)
			r.Post("/{id}/reject", h.RejectWithdrawal)
			r.Post("/{id}/cancel", h.CancelWithdrawal)
		})

		// Cash send routes
		r.Route("/cash-send", func(r chi.Router) {
			r.Post("/", h.CreateCashSend)
			r.Get("/quote", h.CashSendQuote)
			r.Post("/redeem", h.RedeemVoucher)
			r.Get("/{code}", h.VoucherStatus)
			r.Post("/{id}/cancel", h.CancelVoucher)
		})

		// Electricity routes
		r.Route("/electricity", func(r chi.Router) {
			r.Post("/", h.PurchaseElectricity)
			r.Get("/quote", h.ElectricityQuote)
			r.Post("/{id}/fail", h.FailToken)
			r.Post("/{id}/refund", h.RefundToken)
		})

		// Grant enrollment routes
		r.Route("/grants", func(r chi.Router) {
			r.Post("/", h.EnrollGrant)
			r.Post("/{id}/activate", h.ActivateGrant)
			r.Post("/{id}/suspend", h.SuspendGrant)
			r.Post("/{id}/close", h.CloseGrant)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/deposit", h.Deposit)
			r.Post("/sweep", h.RunSweep)
		})
	})

	return r
}
