// Package internal provides the main application initialization and runtime logic.
package internal

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
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dagaz/internal/api"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/perf"
	"github.com/starford/dagaz/internal/photos"
	"github.com/starford/dagaz/internal/settings"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/startup"
	"github.com/starford/dagaz/internal/store"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Data.Dir),
		slog.String("sqlite_path", cfg.Data.SQLitePath()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure data directory exists.
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// SSE broker, wired to startup transitions before the sequence runs.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build the core: store, repositories, monitor, startup service.
	st := store.New(cfg.Data.SQLitePath())
	defer st.Close()

	entries := journal.NewRepository(st, logger)
	settingsRepo := settings.NewRepository(st, logger)
	monitor := perf.NewMonitor(logger)
	photoSvc := photos.NewService(cfg.Data.Dir, logger)

	startupSvc := startup.NewService(st, settingsRepo, monitor, logger, func(state startup.State) {
		broker.PublishStartupState(string(state))
	})

	// Run the launch sequence. A failed launch is reported, not fatal: the
	// API stays up so the client can show the failure and trigger recovery.
	result := startupSvc.Initialize(ctx)
	if result.Success {
		logger.Info("startup complete",
			slog.Int64("initialization_ms", result.InitializationTime.Milliseconds()),
			slog.Bool("requires_auth", result.RequiresAuth))
	} else {
		logger.Error("startup failed", slog.String("error", result.Error))
	}

	if err := photoSvc.InitDir(); err != nil {
		logger.Warn("photo directory unavailable", slog.String("error", err.Error()))
	}

	// Build API handler and router.
	handler := api.NewHandler(entries, settingsRepo, photoSvc, startupSvc, monitor,
		broker, logger, cfg.Image.TargetSize, cfg.Image.Quality)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !startupSvc.HealthCheck(req.Context()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the photo directory and forward library changes to SSE clients.
	g.Go(func() error {
		err := photoSvc.Watch(gCtx, func(kind, name string) {
			if kind == "library" {
				return
			}
			broker.PublishPhotoEvent(kind, name)
		})
		if err != nil {
			logger.Warn("photo watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
