package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chatapi/backend/internal/auth"
	"github.com/chatapi/backend/internal/config"
	"github.com/chatapi/backend/internal/db"
	"github.com/chatapi/backend/internal/handlers"
	"github.com/chatapi/backend/internal/messages"
	"github.com/chatapi/backend/internal/middleware"
	"github.com/chatapi/backend/internal/presence"
	"github.com/chatapi/backend/internal/repositories"
	"github.com/chatapi/backend/internal/storage"
)

const rateLimiterEntryTTL = 10 * time.Minute

// dependencies aggregates everything the HTTP layer needs: the handler
// collaborators plus the middleware-facing services built alongside them.
type dependencies struct {
	handlers handlers.Dependencies

	tokens   *auth.Service
	users    *repositories.PostgresUserRepository
	presence *presence.Recorder
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers and middleware.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (dependencies, error) {
	codec, err := auth.NewCodec(cfg.JWTSecret)
	if err != nil {
		return dependencies{}, fmt.Errorf("configure token codec: %w", err)
	}

	users := repositories.NewPostgresUserRepository(pool)
	tokens := auth.NewService(codec, repositories.NewPostgresSecretStore(pool), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.RefreshSecretLength)
	recorder := presence.NewRecorder(users, presence.RecorderConfig{}, logger)

	var fileStorage handlers.FileStorage
	if cfg.ObjectStore.Bucket != "" {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return dependencies{}, fmt.Errorf("configure object storage: %w", err)
		}
		fileStorage = s3Storage
	} else {
		logger.Warn("no upload bucket configured, file uploads are disabled")
	}

	deps := handlers.Dependencies{
		Users:         users,
		Tokens:        tokens,
		Profiles:      repositories.NewPostgresProfileRepository(pool),
		Messages:      messages.NewService(repositories.NewPostgresMessageRepository(pool)),
		Uploads:       repositories.NewPostgresUploadRepository(pool),
		Storage:       fileStorage,
		LoginLimiter:  middleware.NewIPRateLimiter(cfg.LoginRateLimit.Requests, cfg.LoginRateLimit.Window, cfg.LoginRateLimit.Burst, rateLimiterEntryTTL),
		UploadLimiter: middleware.NewIPRateLimiter(cfg.UploadRateLimit.Requests, cfg.UploadRateLimit.Window, cfg.UploadRateLimit.Burst, rateLimiterEntryTTL),
	}

	return dependencies{
		handlers: deps,
		tokens:   tokens,
		users:    users,
		presence: recorder,
	}, nil
}
