package auth

import "context"

type contextKey string

const (
	ownerIDKey contextKey = "owner_id"
	userIDKey  contextKey = "user_id"
)

// WithOwner returns a context scoped to the acting owner (tenant) and
// user. Every repository query takes the owner id from here via the
// caller; nothing is readable across tenants.
func WithOwner(ctx context.Context, ownerID, userID string) context.Context {
	ctx = context.WithValue(ctx, ownerIDKey, ownerID)
	return context.WithValue(ctx, userIDKey, userID)
}

// GetOwnerID returns the acting tenant id, or "" when unauthenticated.
func GetOwnerID(ctx context.Context) string {
	if val, ok := ctx.Value(ownerIDKey).(string); ok {
		return val
	}
	return ""
}

// GetUserID returns the acting user id, or "" when unauthenticated.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}
