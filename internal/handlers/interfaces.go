package handlers

import (
	"context"
	"io"

	"github.com/chatapi/backend/internal/messages"
	"github.com/chatapi/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

// TokenIssuer issues and rotates bearer token pairs for users.
type TokenIssuer interface {
	Issue(ctx context.Context, userID string) (models.TokenPair, error)
	Rotate(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// ProfileStore captures operations required by the profile handlers.
type ProfileStore interface {
	Create(ctx context.Context, profile models.UserProfile) error
	FindByID(ctx context.Context, id string) (models.UserProfile, error)
	Update(ctx context.Context, profile models.UserProfile) error
	Search(ctx context.Context, keyword, excludeUserID string) ([]models.UserProfile, error)
}

// MessageService coordinates consistent message and attachment writes.
type MessageService interface {
	Create(ctx context.Context, cmd messages.CreateCommand) (models.Message, error)
	Update(ctx context.Context, messageID string, cmd messages.UpdateCommand) (models.Message, error)
	Conversation(ctx context.Context, otherID string) ([]models.Message, error)
}

// UploadStore captures persistence for uploaded file records.
type UploadStore interface {
	Create(ctx context.Context, upload models.FileUpload) error
	FindByID(ctx context.Context, id string) (models.FileUpload, error)
}

// FileStorage persists uploaded file content and returns its location.
type FileStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}
