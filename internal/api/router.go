package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", apiHandler.HealthHandler)
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)

		// Demo scans work without an account
		r.With(apiHandler.OptionalAuth).Post("/ocr", apiHandler.ExtractHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.RequireAuth)

			r.Route("/ocr-responses", func(r chi.Router) {
				r.Get("/", apiHandler.ListExtractionsHandler)
				r.Get("/search", apiHandler.SearchExtractionsHandler)
				r.Get("/stats", apiHandler.ExtractionStatsHandler)
				r.Get("/{id}", apiHandler.GetExtractionHandler)
				r.Delete("/{id}", apiHandler.DeleteExtractionHandler)
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/cards", apiHandler.ListCardsHandler)
				r.Post("/cards/{id}/contact", apiHandler.PromoteCardHandler)
				r.Get("/metrics", apiHandler.DashboardMetricsHandler)
			})

			r.Route("/contacts", func(r chi.Router) {
				r.Get("/", apiHandler.ListContactsHandler)
				r.Post("/", apiHandler.CreateContactHandler)
				r.Get("/{id}", apiHandler.GetContactHandler)
				r.Put("/{id}", apiHandler.UpdateContactHandler)
				r.Delete("/{id}", apiHandler.DeleteContactHandler)
			})
		})
	})

	return r
}
