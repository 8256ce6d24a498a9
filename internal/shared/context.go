package shared

import (
	"context"
	"strconv"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ActorFromContext returns the authenticated user ID, or 0 when anonymous.
func ActorFromContext(ctx context.Context) int64 {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return 0
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// RoleFromContext returns the authenticated user role, or "" when anonymous.
func RoleFromContext(ctx context.Context) string {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return ""
	}
	return sess.Role()
}
