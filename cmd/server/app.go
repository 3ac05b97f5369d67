package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/tagworks/tagworks-api/internal/config"
	"github.com/tagworks/tagworks-api/internal/platform/postgres"
	"github.com/tagworks/tagworks-api/internal/queue"
	"github.com/tagworks/tagworks-api/internal/service"
	"github.com/tagworks/tagworks-api/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	jobStore    store.JobStore
	shardStore  store.ShardStore
	taskStore   store.TaskStore
	configStore store.ConfigStore

	// Queue integration
	signer    *queue.IdentitySigner
	workQueue queue.WorkQueue

	// Service layer
	jobService    service.JobService
	configService service.ConfigService
	dispatcher    *service.Dispatcher
	scheduler     *service.SchedulerService
	resolver      service.WorkItemResolver
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger,
// and database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize identity token signing for queue dispatches and for
	// verifying inbound bearer tokens.
	var err error
	app.signer, err = queue.NewIdentitySigner(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity signer: %w", err)
	}
	logger.Info("identity signer initialized",
		"service_account", cfg.Queue.ServiceAccount)

	// Initialize stores
	app.jobStore = postgres.NewPostgresJobStore(db, logger)
	app.shardStore = postgres.NewPostgresShardStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.configStore = postgres.NewPostgresConfigStore(db, logger)

	// Initialize the work queue client
	app.workQueue = queue.NewHTTPWorkQueue(cfg.Queue, app.signer, logger)

	// Initialize config service
	app.configService, err = service.NewConfigService(db, app.configStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create config service: %w", err)
	}

	// Initialize job service
	app.jobService, err = service.NewJobService(
		app.jobStore,
		app.shardStore,
		app.configStore,
		app.workQueue,
		cfg.Queue.SplitHandlerURL,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job service: %w", err)
	}

	// Initialize the dispatcher that explodes jobs into shards and tasks
	app.dispatcher, err = service.NewDispatcher(
		app.jobStore,
		app.shardStore,
		app.taskStore,
		app.workQueue,
		cfg.Queue.TaskHandlerURL,
		cfg.Queue.DispatchParallelism,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	// Initialize the scheduler
	app.scheduler, err = service.NewSchedulerService(
		app.configStore,
		app.jobService,
		app.configService,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	// Work items resolve straight from the config's inclusion filter.
	app.resolver = service.NewURIListResolver()

	logger.Info("application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
