package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gwi.com/cardscan/internal/api"
	"gwi.com/cardscan/internal/auth"
	"gwi.com/cardscan/internal/config"
	"gwi.com/cardscan/internal/core"
	"gwi.com/cardscan/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Setup logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	slog.Debug("service starting in DEBUG mode")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	// Initialize the remote text extractor
	extractor, err := core.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %w", err)
	}
	defer extractor.Close()

	services := api.Services{
		OCR:      core.NewOCRService(dbStore, extractor, cfg.ExtractionTimeout),
		Cards:    core.NewCardService(dbStore),
		Metrics:  core.NewMetricsService(dbStore),
		Contacts: core.NewContactService(dbStore),
	}

	// Initialize API Handler and Router
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	apiHandler := api.NewAPIHandler(dbStore, jwtManager, services, cfg.MaxUploadBytes)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ExtractionTimeout + 15*time.Second, // extraction calls can take time
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", serverAddr, "model", cfg.GeminiModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	// Give active connections time to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exiting gracefully")
	return nil
}
