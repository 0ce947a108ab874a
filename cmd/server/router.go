package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/revive-api/internal/api"
	apiMiddleware "github.com/phrazzld/revive-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	renderHandler := api.NewRenderHandler(app.runner, app.logger)
	accountHandler := api.NewAccountHandler(app.ledger, app.logger)

	r.Route("/api", func(r chi.Router) {
		// Render endpoints (public; user identity is asserted by the
		// transport layer calling this API).
		r.Post("/renders", renderHandler.CreateRender)
		r.Get("/renders/{id}", renderHandler.GetRender)

		r.Get("/accounts/{id}/balance", accountHandler.GetBalance)

		// Operator endpoints, called once a payment is confirmed.
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.AdminAuth(app.config.Server.AdminKey))
			r.Post("/accounts/{id}/credits", accountHandler.AddCredits)
			r.Post("/accounts/{id}/unlimited", accountHandler.GrantUnlimited)
			r.Get("/stats", accountHandler.GetStats)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
