/**
 * @description
 * This file sets up the HTTP router for the ledger service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LedgerRoutes creates and returns a new router for the ledger service.
func LedgerRoutes(h *LedgerHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/transactions", h.CreateTransactionHandler)
		r.Get("/transactions", h.ListTransactionsHandler)
		r.Get("/transactions/stats", h.TransactionStatsHandler)
		r.Get("/transactions/{transactionID}", h.GetTransactionHandler)
		r.Post("/transactions/{transactionID}/cancel", h.CancelTransactionHandler)

		r.Post("/accounts", h.CreateAccountHandler)
		r.Get("/accounts", h.ListAccountsHandler)
		r.Get("/accounts/{accountID}", h.GetAccountHandler)
		r.Get("/accounts/{accountID}/balance-history", h.BalanceHistoryHandler)

		r.Post("/cards", h.CreateCardHandler)
		r.Get("/cards", h.ListCardsHandler)
		r.Post("/cards/{cardID}/block", h.BlockCardHandler)
		r.Post("/cards/{cardID}/unblock", h.UnblockCardHandler)
		r.Delete("/cards/{cardID}", h.DeleteCardHandler)
	})

	return r
}
