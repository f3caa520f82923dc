package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the "kind" claim. Access tokens authenticate
// requests; refresh tokens may only be exchanged for a new pair.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// ErrInvalidToken indicates a token that is malformed, tampered with, or
// expired. Callers receive the single sentinel; the wrapped cause keeps the
// distinction for logging.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the decoded content of a signed token.
type Claims struct {
	Subject   string
	Kind      string
	Secret    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type wireClaims struct {
	Kind   string `json:"kind"`
	Secret string `json:"secret,omitempty"`
	jwt.RegisteredClaims
}

// Codec encodes and decodes claims as HMAC-SHA256 signed tokens. Both
// operations are pure; expiry is checked against the wall clock at decode
// time by the underlying parser.
type Codec struct {
	key []byte
}

// NewCodec constructs a codec signing with the provided secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret must not be empty")
	}
	return &Codec{key: []byte(secret)}, nil
}

// Encode signs the claims and returns the compact token string.
func (c *Codec) Encode(claims Claims) (string, error) {
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		return "", errors.New("auth: expiry must be after issue time")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, wireClaims{
		Kind:   claims.Kind,
		Secret: claims.Secret,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry of the token string and returns
// its claims. Any failure surfaces as ErrInvalidToken.
func (c *Codec) Decode(tokenString string) (Claims, error) {
	var parsed wireClaims
	token, err := jwt.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return c.key, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	claims := Claims{
		Subject: parsed.Subject,
		Kind:    parsed.Kind,
		Secret:  parsed.Secret,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time.UTC()
	}

	return claims, nil
}
