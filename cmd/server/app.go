package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/stillpoint/stillpoint-api/internal/config"
	"github.com/stillpoint/stillpoint-api/internal/platform/postgres"
	"github.com/stillpoint/stillpoint-api/internal/service/analytics"
	"github.com/stillpoint/stillpoint-api/internal/service/auth"
	"github.com/stillpoint/stillpoint-api/internal/service/lifecycle"
	"github.com/stillpoint/stillpoint-api/internal/store"
	"github.com/stillpoint/stillpoint-api/internal/task"
)

// application holds the dependency graph of the running server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	recordStore store.RecordStore
	rollupStore store.RollupStore
	catalog     store.StressorCatalog

	// Service interfaces
	tokenVerifier    auth.TokenVerifier
	lifecycleService lifecycle.Service
	analyticsService analytics.Service

	// Background maintenance
	sweeper *task.Sweeper
}

// newApplication creates an application instance with all dependencies
// initialized. The database connection must already be established.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.tokenVerifier, err = auth.NewTokenVerifier(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	app.recordStore = postgres.NewPostgresRecordStore(db, logger)
	app.rollupStore = postgres.NewPostgresRollupStore(db, logger)
	app.catalog = postgres.NewPostgresStressorCatalog(db, logger)

	app.lifecycleService = lifecycle.NewService(
		app.recordStore,
		app.catalog,
		nil, // default scoring parameters
		cfg.Sweep,
		logger,
	)

	app.analyticsService, err = analytics.NewService(
		app.recordStore,
		app.rollupStore,
		cfg.Analytics,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics service: %w", err)
	}

	app.sweeper = task.NewSweeper(
		app.lifecycleService,
		app.analyticsService,
		task.SweeperConfig{Interval: cfg.Sweep.Interval},
		logger,
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the background sweeper and the HTTP server, blocking until
// shutdown completes.
func (app *application) Run(ctx context.Context) error {
	app.sweeper.Start()

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
