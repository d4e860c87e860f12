package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/croftlabs/certbill/internal/adapter/fsm"
	"github.com/croftlabs/certbill/internal/adapter/gogetssl"
	riveradapter "github.com/croftlabs/certbill/internal/adapter/river"
	"github.com/croftlabs/certbill/internal/adapter/sqlite"
	"github.com/croftlabs/certbill/internal/app"

	handler "github.com/croftlabs/certbill/internal/adapter/http"
	oteladapter "github.com/croftlabs/certbill/internal/adapter/otel"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	// --- Telemetry ---
	providers, err := oteladapter.Setup(ctx, oteladapter.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("ledger store: %w", err)
	}
	defer store.Close()

	riverClient, err := riveradapter.Setup(ctx, db)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}

	publisher := oteladapter.NewTracingPublisher(riveradapter.NewPublisher(riverClient))
	provisioner := oteladapter.NewTracingProvisioner(gogetssl.New(
		cfg.CABaseURL, cfg.CAAPIKey, logger,
		gogetssl.WithHTTPClient(&http.Client{Timeout: cfg.CATimeout}),
	))

	// --- Application ---
	validator := fsm.New()
	credit := app.NewCreditGuard(store)
	lifecycle := app.NewAccountLifecycle(store, validator, publisher, logger)
	saga := app.NewProvisioningSaga(store, provisioner, credit, lifecycle, publisher, logger)
	refunds := app.NewRefundEngine(store, provisioner, lifecycle, publisher, logger)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("certbill", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("certbill", "0.1.0"))
	handler.Register(api, saga, refunds, lifecycle, credit)

	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("certbill listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		logger.Error("river shutdown", "error", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Error("otel shutdown", "error", err)
	}

	logger.Info("stopped")
	return nil
}
