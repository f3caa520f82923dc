package repositories

import (
	"context"

	"github.com/chatapi/backend/internal/models"
)

// UploadRepository exposes data access for stored file uploads.
type UploadRepository interface {
	Create(ctx context.Context, upload models.FileUpload) error
	FindByID(ctx context.Context, id string) (models.FileUpload, error)
}
