package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stillpoint/stillpoint-api/internal/api"
	apiMiddleware "github.com/stillpoint/stillpoint-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.tokenVerifier)
	recordHandler := api.NewRecordHandler(app.lifecycleService, app.logger)
	analyticsHandler := api.NewAnalyticsHandler(app.analyticsService, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Record lifecycle endpoints
			r.Route("/records/{domain}", func(r chi.Router) {
				r.Post("/", recordHandler.Open)
				r.Get("/", recordHandler.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", recordHandler.Get)
					r.Patch("/", recordHandler.Progress)
					r.Post("/finalize", recordHandler.Finalize)
				})
			})

			// Aggregation endpoints
			r.Route("/analytics/{domain}", func(r chi.Router) {
				r.Get("/daily", analyticsHandler.Daily)
				r.Get("/overview", analyticsHandler.Overview)
				r.Get("/streak", analyticsHandler.Streak)
			})
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
