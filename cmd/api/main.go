// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "finflow-ledger/internal"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger := app.NewApplication()
	if err := ledger.Initialize(ctx); err != nil {
		ledger.Logger.Error("Failed to initialize ledger", "error", err)
		_ = ledger.Shutdown(context.Background())
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + ledger.Config.ServerPort,
		Handler:           ledger.HTTPHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second, // longer than the per-request handler timeout
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		ledger.Logger.Info("Ledger API listening", "port", ledger.Config.ServerPort, "store", ledger.Config.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		ledger.Logger.Info("Signal received, draining requests")
	case err := <-serverErr:
		if err != nil {
			ledger.Logger.Error("HTTP server stopped", "error", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		ledger.Logger.Error("HTTP server shutdown failed", "error", err)
		exitCode = 1
	}
	// In-flight operations have finished; the store and redis can go.
	if err := ledger.Shutdown(shutdownCtx); err != nil {
		exitCode = 1
	}

	ledger.Logger.Info("Ledger stopped", "exit_code", exitCode)
	if exitCode != 0 {
		cancel()
		stop()
		os.Exit(exitCode)
	}
}
