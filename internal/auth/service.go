package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatapi/backend/internal/models"
)

var (
	// ErrUnauthenticated indicates no valid identity could be derived from
	// the presented credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSecretNotFound indicates no refresh secret is stored for the user.
	ErrSecretNotFound = errors.New("refresh secret not found")
)

// SecretStore persists the refresh secret currently valid for each user so
// rotation can reject replayed refresh tokens.
type SecretStore interface {
	Save(ctx context.Context, secret models.RefreshSecret) error
	Find(ctx context.Context, userID string) (models.RefreshSecret, error)
	Delete(ctx context.Context, userID string) error
}

// Service issues access/refresh token pairs and validates access tokens.
//
// Refresh tokens are single-use: every issuance overwrites the stored secret
// for the subject, so a refresh token minted before the latest rotation no
// longer matches and cannot rotate again.
type Service struct {
	codec        *Codec
	store        SecretStore
	accessTTL    time.Duration
	refreshTTL   time.Duration
	secretLength int
	now          func() time.Time
}

// NewService constructs a token service issuing tokens with the provided TTLs.
func NewService(codec *Codec, store SecretStore, accessTTL, refreshTTL time.Duration, secretLength int) *Service {
	if codec == nil {
		panic("auth: codec must not be nil")
	}
	if store == nil {
		panic("auth: secret store must not be nil")
	}
	if secretLength <= 0 {
		secretLength = 10
	}
	return &Service{
		codec:        codec,
		store:        store,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		secretLength: secretLength,
		now:          time.Now,
	}
}

// Issue creates a new pair of access and refresh tokens for the provided
// user identifier and stores the refresh secret embedded in the pair.
func (s *Service) Issue(ctx context.Context, userID string) (models.TokenPair, error) {
	if userID == "" {
		return models.TokenPair{}, errors.New("user id must be provided")
	}

	now := s.now().UTC()

	access, err := s.codec.Encode(Claims{
		Subject:   userID,
		Kind:      KindAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.accessTTL),
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("encode access token: %w", err)
	}

	secret, err := GenerateSecret(s.secretLength)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("generate refresh secret: %w", err)
	}

	refreshExpiry := now.Add(s.refreshTTL)
	refresh, err := s.codec.Encode(Claims{
		Subject:   userID,
		Kind:      KindRefresh,
		Secret:    secret,
		IssuedAt:  now,
		ExpiresAt: refreshExpiry,
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("encode refresh token: %w", err)
	}

	if err := s.store.Save(ctx, models.RefreshSecret{
		UserID:    userID,
		Secret:    secret,
		ExpiresAt: refreshExpiry,
	}); err != nil {
		return models.TokenPair{}, fmt.Errorf("store refresh secret: %w", err)
	}

	return models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// VerifyAccess decodes an access token and returns the subject user id.
func (s *Service) VerifyAccess(tokenString string) (string, error) {
	claims, err := s.codec.Decode(tokenString)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Kind != KindAccess {
		return "", fmt.Errorf("%w: token kind %q cannot authenticate requests", ErrUnauthenticated, claims.Kind)
	}
	return claims.Subject, nil
}

// Rotate exchanges a refresh token for a fresh pair. The presented token
// must be a refresh token whose embedded secret matches the stored one.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Kind != KindRefresh {
		return models.TokenPair{}, fmt.Errorf("%w: token kind %q cannot rotate", ErrUnauthenticated, claims.Kind)
	}

	stored, err := s.store.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			return models.TokenPair{}, fmt.Errorf("%w: no active refresh secret", ErrUnauthenticated)
		}
		return models.TokenPair{}, fmt.Errorf("find refresh secret: %w", err)
	}

	if stored.Secret != claims.Secret {
		return models.TokenPair{}, fmt.Errorf("%w: refresh token superseded", ErrUnauthenticated)
	}

	if s.now().UTC().After(stored.ExpiresAt) {
		_ = s.store.Delete(ctx, claims.Subject)
		return models.TokenPair{}, fmt.Errorf("%w: refresh secret expired", ErrUnauthenticated)
	}

	return s.Issue(ctx, claims.Subject)
}

// Revoke discards the stored refresh secret for a user, invalidating any
// outstanding refresh token.
func (s *Service) Revoke(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	_ = s.store.Delete(ctx, userID)
}
