package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test-clients",
		TTL:      time.Hour,
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	cfg := testJWTConfig()

	token, err := GenerateToken(cfg, Identity{
		UserID:      "u-42",
		DisplayName: "Asha Verma",
		AvatarURL:   "https://cdn.example/u-42.jpg",
	})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	id, err := NewJWTVerifier(cfg).Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "u-42" || id.DisplayName != "Asha Verma" || id.AvatarURL != "https://cdn.example/u-42.jpg" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyEmptyCredential(t *testing.T) {
	_, err := NewJWTVerifier(testJWTConfig()).Verify(context.Background(), "")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyGarbageCredential(t *testing.T) {
	_, err := NewJWTVerifier(testJWTConfig()).Verify(context.Background(), "not-a-token")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	cfg.TTL = -time.Minute

	token, err := GenerateToken(cfg, Identity{UserID: "u-1", DisplayName: "Old"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := NewJWTVerifier(cfg).Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for expired token, got %v", err)
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	issuing := testJWTConfig()
	issuing.Issuer = "someone-else"

	token, err := GenerateToken(issuing, Identity{UserID: "u-1", DisplayName: "X"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := NewJWTVerifier(testJWTConfig()).Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for wrong issuer, got %v", err)
	}
}

func TestVerifyDefaultsDisplayNameToUserID(t *testing.T) {
	cfg := testJWTConfig()

	token, err := GenerateToken(cfg, Identity{UserID: "u-7"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	id, err := NewJWTVerifier(cfg).Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.DisplayName != "u-7" {
		t.Fatalf("expected display name fallback to user id, got %q", id.DisplayName)
	}
}
