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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/documentum/pkg/documentum/api"
	"github.com/tendant/documentum/pkg/documentum/config"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	opts := []config.Option{}
	if path := os.Getenv("DOCUMENTUM_CONFIG_FILE"); path != "" {
		opts = append(opts, config.WithFile(path))
	}
	opts = append(opts, config.WithEnv())

	serverConfig, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := serverConfig.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	svc, cleanup, err := serverConfig.BuildService(ctx, logger)
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)
	if serverConfig.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	handler := api.New(svc, logger)
	r.Route("/api/v1", func(r chi.Router) {
		if serverConfig.APIKeySHA256 != "" {
			apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
				APIKeys: map[string]string{
					"key1": serverConfig.APIKeySHA256,
				},
			})
			if err != nil {
				logger.Error("Failed initialize API Key middleware", "err", err)
				os.Exit(1)
			}
			r.Use(apiKeyMiddleware)
		}
		r.Mount("/", handler.Routes())
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("documentum server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.DefaultStorageBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}
	logger.Info("Server exiting")
}
