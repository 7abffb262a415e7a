package teams

import "github.com/go-chi/chi/v5"

// MountRoutes registers the team administration endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/teams", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Show)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Get("/{id}/members", h.Members)
		r.Get("/{id}/stats", h.Stats)
	})
}
