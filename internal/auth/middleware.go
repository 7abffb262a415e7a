package auth

import (
	"log/slog"
	"net/http"

	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/users"
)

// ActorLoader resolves the session's user into an actor snapshot and
// stores it in the request context. Requests without a valid session, or
// whose account has been deactivated, pass through without an actor.
func ActorLoader(logger *slog.Logger, repo users.Repository) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			userID := sess.User()
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := repo.Get(r.Context(), userID)
			if err != nil || !user.IsActive {
				if err != nil {
					logger.Warn("resolve session user", "user_id", userID, "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := shared.ContextWithActor(r.Context(), user.Actor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActor rejects requests that did not resolve to an actor.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.ActorFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
