package repositories

import (
	"context"

	"github.com/chatapi/backend/internal/models"
)

// ProfileRepository defines data access for user profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile models.UserProfile) error
	FindByID(ctx context.Context, id string) (models.UserProfile, error)
	Update(ctx context.Context, profile models.UserProfile) error
	// Search returns profiles whose username or name matches the keyword,
	// excluding excludeUserID when it is non-empty. An empty keyword lists
	// all profiles.
	Search(ctx context.Context, keyword, excludeUserID string) ([]models.UserProfile, error)
}
