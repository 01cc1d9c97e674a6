package auth

import "context"

// contextKey is a private type for context keys.
type contextKey int

const userIDContextKey contextKey = iota

// WithUserID adds the authenticated user ID to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserID retrieves the authenticated user ID from the context. Returns an
// empty string when the request is unauthenticated.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDContextKey).(string); ok {
		return id
	}
	return ""
}
