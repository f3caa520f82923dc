package auth

import (
	"context"

	"github.com/chatapi/backend/internal/models"
)

// ctxKey is an unexported type for context keys defined in this package.
type ctxKey string

const userKey ctxKey = "user"

// WithUser stores the resolved identity on the context.
func WithUser(ctx context.Context, user models.User) context.Context {
	if ctx == nil || user.ID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the identity resolved for this request, if any.
func UserFromContext(ctx context.Context) (models.User, bool) {
	if ctx == nil {
		return models.User{}, false
	}
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok && user.ID != ""
}
