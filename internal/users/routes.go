package users

import "github.com/go-chi/chi/v5"

// MountRoutes registers the user administration endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/stats", h.Stats)
		r.Get("/{id}", h.Show)
		r.Patch("/{id}", h.Update)
		r.Post("/{id}/deactivate", h.Deactivate)
		r.Post("/{id}/reactivate", h.Reactivate)
		r.Post("/{id}/team", h.AssignTeam)
		r.Put("/{id}/permissions", h.UpdatePermissions)
	})
}
