// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"finflow-ledger/internal/api/handler"
	ledgermw "finflow-ledger/internal/api/middleware"
)

// RouterOptions carries the optional pieces of the router.
type RouterOptions struct {
	// Idempotency enables the Idempotency-Key guard on unsafe requests when set.
	Idempotency    *redis.Client
	IdempotencyTTL time.Duration
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(ledgerHandler *handler.LedgerHandler, logger *slog.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		if opts.Idempotency != nil {
			r.Use(ledgermw.Idempotency(opts.Idempotency, opts.IdempotencyTTL, logger))
		}

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/deposit", ledgerHandler.Deposit)
			r.Post("/withdraw", ledgerHandler.Withdraw)
			r.Get("/balance", ledgerHandler.GetTotalBalance)
			r.Get("/wallets", ledgerHandler.GetWallets)
			r.Get("/wallets/{currency}", ledgerHandler.GetWallet)
			r.Get("/transactions", ledgerHandler.GetTransactionHistory)
		})

		// Transfer is a separate top-level endpoint as it involves two users
		r.Post("/transfers", ledgerHandler.Transfer)
	})

	return r
}
