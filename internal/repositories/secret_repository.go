package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatapi/backend/internal/auth"
	"github.com/chatapi/backend/internal/db"
	"github.com/chatapi/backend/internal/models"
)

// PostgresSecretStore persists refresh secrets to PostgreSQL. One row per
// user; saving replaces whatever secret was active before, which is what
// makes refresh tokens single-use.
type PostgresSecretStore struct {
	pool db.Pool
}

// NewPostgresSecretStore constructs a refresh secret store backed by PostgreSQL.
func NewPostgresSecretStore(pool db.Pool) *PostgresSecretStore {
	return &PostgresSecretStore{pool: pool}
}

// Save stores or replaces the refresh secret for a user.
func (s *PostgresSecretStore) Save(ctx context.Context, secret models.RefreshSecret) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO refresh_tokens (user_id, secret, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id)
        DO UPDATE SET secret = EXCLUDED.secret, expires_at = EXCLUDED.expires_at
    `, secret.UserID, secret.Secret, secret.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert refresh secret: %w", err)
	}

	return nil
}

// Find loads the refresh secret stored for a user.
func (s *PostgresSecretStore) Find(ctx context.Context, userID string) (models.RefreshSecret, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.RefreshSecret{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT user_id, secret, expires_at
        FROM refresh_tokens
        WHERE user_id = $1
    `, userID)

	var secret models.RefreshSecret
	var expiresAt time.Time
	if err := row.Scan(&secret.UserID, &secret.Secret, &expiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return models.RefreshSecret{}, auth.ErrSecretNotFound
		}
		return models.RefreshSecret{}, fmt.Errorf("select refresh secret: %w", err)
	}

	secret.ExpiresAt = expiresAt.UTC()
	return secret, nil
}

// Delete removes the refresh secret stored for a user.
func (s *PostgresSecretStore) Delete(ctx context.Context, userID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM refresh_tokens
        WHERE user_id = $1
    `, userID); err != nil {
		return fmt.Errorf("delete refresh secret: %w", err)
	}

	return nil
}

var _ auth.SecretStore = (*PostgresSecretStore)(nil)
