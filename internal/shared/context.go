package shared

import (
	"context"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
)

type actorContextKey struct{}

type sessionContextKey struct{}

// ContextWithActor stores the authenticated actor snapshot in context.
func ContextWithActor(ctx context.Context, actor rbac.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (rbac.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(rbac.Actor)
	return actor, ok
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
