// Notes service entry point. Wires config, the encrypted store, the
// favorite index, token auth, and the HTTP surface, then serves until
// interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdityaUmale/note-taking/internal/api"
	"github.com/AdityaUmale/note-taking/internal/auth"
	"github.com/AdityaUmale/note-taking/internal/config"
	"github.com/AdityaUmale/note-taking/internal/db"
	"github.com/AdityaUmale/note-taking/internal/favorites"
	"github.com/AdityaUmale/note-taking/internal/notes"
	"github.com/AdityaUmale/note-taking/internal/obs"
	"github.com/AdityaUmale/note-taking/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	addr := config.ParseFlags()
	cfg := config.MustLoadConfig(addr)

	obs.Init()
	log := obs.Pkg("main")
	cfg.PrintStartupSummary()

	database, err := db.Open(cfg.DatabasePath, cfg.MasterKey)
	if err != nil {
		log.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer database.Close()

	signingKey, publicKey, err := auth.KeyPairFromSeed(cfg.TokenSigningKey)
	if err != nil {
		log.Error("invalid token signing key", "error", err)
		os.Exit(1)
	}
	issuer := auth.NewTokenIssuer(cfg.BaseURL, signingKey, cfg.TokenTTL)
	verifier := auth.NewTokenVerifier(cfg.BaseURL, publicKey)

	accounts := auth.NewAccountService(database, issuer)
	store := notes.NewStore(database)
	index := favorites.NewIndex(database)
	coordinator := notes.NewCoordinator(store, index)

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	defer limiter.Stop()

	handler := api.NewHandler(accounts, coordinator, store, database)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Periodic repair of favorite state. Any divergence between the
	// relation set and the denormalized flags is logged and fixed.
	go reconcileLoop(ctx, coordinator, cfg.ReconcileInterval)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(handler, verifier, limiter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("server stopped")
}

// reconcileLoop runs one reconciliation immediately, then repeats on the
// configured interval until ctx is cancelled.
func reconcileLoop(ctx context.Context, coordinator *notes.Coordinator, interval time.Duration) {
	log := obs.Pkg("reconcile")

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := coordinator.Reconcile(runCtx); err != nil {
			log.Warn("reconciliation failed", "error", err)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
