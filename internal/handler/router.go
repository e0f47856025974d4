package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/freight-market/internal/middleware"
	"github.com/mmeshcher/freight-market/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware маркетплейса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.With(h.authLimiter.Middleware).Post("/register", h.Register)
		r.With(h.authLimiter.Middleware).Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Get("/carriers", h.GetCarriers)
		r.Get("/carriers/location/{location}", h.GetCarriers)
		r.Get("/loaders", h.GetLoaders)
		r.Get("/loaders/location/{location}", h.GetLoaders)
		r.Get("/users/{id}", h.GetUser)
		r.Get("/reviews/user/{userId}", h.GetUserReviews)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/user", h.CurrentUser)
			r.Post("/update-profile", h.UpdateProfile)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders/client", h.GetClientOrders)
			r.With(custommiddleware.RequireRole(model.RoleCarrier)).Get("/orders/carrier", h.GetCarrierOrders)
			r.With(custommiddleware.RequireRole(model.RoleCarrier)).Get("/orders/available", h.GetAvailableOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Patch("/orders/{id}", h.UpdateOrder)
			r.With(custommiddleware.RequireRole(model.RoleCarrier)).Post("/orders/{id}/accept", h.AcceptOrder)
			r.Get("/orders/{id}/loaders", h.GetOrderLoaders)
			r.Post("/orders/{id}/loaders/{loaderId}", h.AssignLoader)

			r.Post("/reviews", h.CreateReview)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Optional)
			r.Use(custommiddleware.RequireRole(model.RoleAdmin))

			r.Get("/orders", h.AdminListOrders)
			r.Get("/users", h.AdminListUsers)
			r.Patch("/users/{id}/status", h.AdminSetUserStatus)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
