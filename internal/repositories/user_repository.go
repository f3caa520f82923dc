package repositories

import (
	"context"
	"time"

	"github.com/chatapi/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	UpdateOnline(ctx context.Context, userID string, seenAt time.Time) error
}
