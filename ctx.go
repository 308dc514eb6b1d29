package authgate

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultSessionContextKey is the router locals key holding the gated session.
const DefaultSessionContextKey = "session"

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSession sets the Session in the given context
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session from the context.
func SessionFromContext(ctx context.Context) (Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// GetRouterSession extracts the session stored by ProtectedRoute.
func GetRouterSession(ctx router.Context, key string) (Session, bool) {
	if key == "" {
		key = DefaultSessionContextKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return Session{}, false
	}
	session, ok := raw.(Session)
	return session, ok
}
