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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/keyline/internal/api"
	"github.com/starford/keyline/internal/docservice"
	"github.com/starford/keyline/internal/index"
	"github.com/starford/keyline/internal/mcpserver"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/sse"
	"github.com/starford/keyline/internal/storage"
)

// runtime holds the shared components of the server and MCP commands.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	exports *storage.FS
	db      *index.DB
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup creates the logger, the library and exports stores and the index,
// then runs the initial sync.
func setup(app *application) (*runtime, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	})).With(slog.String("version", app.version))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_path", cfg.Library.Path),
		slog.String("exports_path", cfg.Exports.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	for _, dir := range []string{cfg.Library.Path, cfg.Exports.Path} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	store, err := storage.NewFS(cfg.Library.Path, models.DocumentExt)
	if err != nil {
		return nil, fmt.Errorf("init library storage: %w", err)
	}
	exports, err := storage.NewFS(cfg.Exports.Path, models.ScriptExt)
	if err != nil {
		return nil, fmt.Errorf("init exports storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if _, err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &runtime{cfg: cfg, logger: logger, store: store, exports: exports, db: db}, nil
}

func (rt *runtime) service(n docservice.Notifier) *docservice.Service {
	return docservice.NewService(rt.store, rt.db, docservice.Options{
		Exports:       rt.exports,
		Notifier:      n,
		ModuleName:    rt.cfg.Exports.ModuleName,
		FrameInterval: rt.cfg.Preview.FrameInterval,
		HistoryLimit:  rt.cfg.Preview.HistoryLimit,
		Logger:        rt.logger,
	})
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := setup(app)
	if err != nil {
		return err
	}
	defer rt.db.Close()
	cfg, logger := rt.cfg, rt.logger

	broker := sse.NewBroker(cfg.Events.IndexThrottle, cfg.Events.PreviewInterval)
	defer broker.Close()

	svc := rt.service(broker)
	defer svc.Close()

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := rt.db.Ping(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes, SSE included, under /api. Compiled modules are public.
	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))
	r.Mount("/exports", api.NewExportRouter(svc, rt.exports))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// File watcher: external edits are indexed, announced and reloaded.
	if cfg.Library.Watch {
		g.Go(func() error {
			if err := index.Watch(gCtx, rt.db, rt.store, rt.store.Root(), logger, svc.HandleExternalChange); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		svc.Close()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := setup(app)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	svc := rt.service(nil)
	defer svc.Close()

	g, gCtx := errgroup.WithContext(ctx)
	if rt.cfg.Library.Watch {
		g.Go(func() error {
			if err := index.Watch(gCtx, rt.db, rt.store, rt.store.Root(), rt.logger, svc.HandleExternalChange); err != nil {
				rt.logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	rt.logger.Info("Starting MCP server on stdio")
	srvErr := mcpserver.New(svc, app.version).ServeStdio()
	if srvErr != nil {
		rt.logger.Error("MCP server error", slog.String("error", srvErr.Error()))
	}
	return srvErr
}
