// ABOUTME: Authenticated user carried through request handlers
// ABOUTME: Provides WithUser/UserFromContext for propagating the caller via context

package auth

import "context"

// userContextKey is the key type for storing the user id in context.Context.
type userContextKey struct{}

// WithUser returns a new context carrying the authenticated user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// UserFromContext returns the authenticated user id, or "" when absent.
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userContextKey{}).(string)
	return id
}
