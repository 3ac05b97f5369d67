package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tagworks/tagworks-api/internal/api"
	apiMiddleware "github.com/tagworks/tagworks-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware. Client routes expect tokens whose audience is
// the API's base URL; the callback routes expect tokens minted by the
// work queue for their own handler URLs.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	// Create API handlers using the application's services
	configHandler := api.NewConfigHandler(app.configService, app.logger)
	jobHandler := api.NewJobHandler(app.jobService, app.configService, app.logger)
	callbackHandler := api.NewCallbackHandler(app.jobService, app.dispatcher, app.resolver, app.logger)
	schedulerHandler := api.NewSchedulerHandler(app.scheduler, app.logger)
	identity := apiMiddleware.NewIdentityMiddleware(app.signer)

	// Register routes
	r.Route("/api", func(r chi.Router) {
		// Client-facing routes
		r.Group(func(r chi.Router) {
			r.Use(identity.RequireIdentity(app.config.Server.BaseURL))

			// Config endpoints
			r.Post("/configs", configHandler.CreateConfig)
			r.Get("/configs", configHandler.ListConfigs)
			r.Post("/configs/purge", configHandler.PurgeInactiveConfigs)
			r.Get("/configs/{type}/{id}", configHandler.GetConfig)
			r.Delete("/configs/{type}/{id}", configHandler.DeleteConfig)
			r.Put("/configs/{type}/{id}/scheduling", configHandler.SetSchedulingStatus)
			r.Get("/configs/{type}/{id}/jobs", jobHandler.ListJobs)

			// Job endpoints
			r.Post("/jobs", jobHandler.TriggerJob)
			r.Get("/jobs/{id}", jobHandler.GetJobStatus)

			// Scheduler trigger
			r.Post("/scheduler/run", schedulerHandler.Run)
		})

		// Queue callback routes
		r.Group(func(r chi.Router) {
			r.Use(identity.RequireIdentity(app.config.Queue.SplitHandlerURL))
			r.Post("/callbacks/split", callbackHandler.SplitWork)
		})
		r.Group(func(r chi.Router) {
			r.Use(identity.RequireIdentity(app.config.Queue.TaskHandlerURL))
			r.Post("/callbacks/tasks", callbackHandler.ReportTaskStatus)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
