package auth

import (
	"context"

	"github.com/ayush/skillswap/internal/models"
)

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID injects the authenticated user id into ctx.
func WithUserID(ctx context.Context, id models.UserID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (models.UserID, bool) {
	id, ok := ctx.Value(userIDKey).(models.UserID)
	return id, ok && id != ""
}
