package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec("test-signing-secret")
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return codec
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	issued := time.Now().UTC().Truncate(time.Second)
	claims := Claims{
		Subject:   "user-1",
		Kind:      KindRefresh,
		Secret:    "abcDEF1234",
		IssuedAt:  issued,
		ExpiresAt: issued.Add(time.Hour),
	}

	token, err := codec.Encode(claims)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded != claims {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, claims)
	}
}

func TestCodecRejectsExpired(t *testing.T) {
	codec := newTestCodec(t)

	issued := time.Now().UTC().Add(-2 * time.Hour)
	token, err := codec.Encode(Claims{
		Subject:   "user-1",
		Kind:      KindAccess,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := codec.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestCodecRejectsTampering(t *testing.T) {
	codec := newTestCodec(t)

	now := time.Now().UTC()
	token, err := codec.Encode(Claims{
		Subject:   "user-1",
		Kind:      KindAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Flip a character in the payload segment.
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact token, got %q", token)
	}
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := codec.Decode(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestCodecRejectsForeignKey(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec("a-different-secret")
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	now := time.Now().UTC()
	token, err := other.Encode(Claims{
		Subject:   "user-1",
		Kind:      KindAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := codec.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestCodecEncodeValidation(t *testing.T) {
	codec := newTestCodec(t)

	now := time.Now().UTC()
	if _, err := codec.Encode(Claims{Subject: "user-1", Kind: KindAccess, IssuedAt: now, ExpiresAt: now}); err == nil {
		t.Fatal("expected error when expiry is not after issue time")
	}
}
