package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/phrazzld/revive-api/internal/config"
	"github.com/phrazzld/revive-api/internal/fetch"
	"github.com/phrazzld/revive-api/internal/ledger"
	"github.com/phrazzld/revive-api/internal/memorystore"
	"github.com/phrazzld/revive-api/internal/platform/logger"
	"github.com/phrazzld/revive-api/internal/platform/postgres"
	"github.com/phrazzld/revive-api/internal/platform/replicate"
	"github.com/phrazzld/revive-api/internal/scheduler"
	"github.com/phrazzld/revive-api/internal/service"
	"github.com/phrazzld/revive-api/internal/store"
	"github.com/phrazzld/revive-api/internal/task"
)

// application holds the wired dependencies of the running server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	ledger *ledger.Ledger
	runner *task.Runner
}

// newApplication loads configuration and wires all application components.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"durable_store", cfg.Database.URL != "")

	var accounts store.AccountStore
	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		accounts = postgres.NewAccountStore(db)
	} else {
		appLogger.Warn("no database configured, entitlements are process-local")
		accounts = memorystore.New()
	}

	entitlements, err := ledger.New(accounts, cfg.Entitlement.FreeQuota, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	slots, err := scheduler.New(cfg.Render.MaxConcurrent, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	animator, err := replicate.NewClient(appLogger, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider client: %w", err)
	}

	fetcher := fetch.New(appLogger, time.Duration(cfg.Render.FetchTimeoutSeconds)*time.Second)

	renderService, err := service.NewRenderService(entitlements, slots, animator, fetcher, service.Config{
		Model:         cfg.Provider.Model,
		FallbackModel: cfg.Provider.FallbackModel,
		DefaultPrompt: cfg.Provider.DefaultPrompt,
		PollTimeout:   time.Duration(cfg.Render.PollTimeoutSeconds) * time.Second,
		TempDir:       cfg.Render.TempDir,
	}, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create render service: %w", err)
	}

	runner, err := task.NewRunner(renderService, task.NewRegistry(), task.RunnerConfig{
		WorkerCount: cfg.Render.WorkerCount,
		QueueSize:   cfg.Render.QueueSize,
	}, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create render runner: %w", err)
	}

	return &application{
		config: cfg,
		logger: appLogger,
		db:     db,
		ledger: entitlements,
		runner: runner,
	}, nil
}

// run starts the worker pool and HTTP server, then blocks until ctx is
// canceled, shutting both down gracefully.
func (app *application) run(ctx context.Context) error {
	app.runner.Start()
	defer app.runner.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		app.logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}

	return nil
}
