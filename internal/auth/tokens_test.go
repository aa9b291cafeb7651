package auth

import (
	"errors"
	"testing"
	"time"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  []byte("access-secret-for-tests"),
		AccessTTL:     time.Minute,
		RefreshSecret: []byte("refresh-secret-for-tests"),
		RefreshTTL:    time.Hour,
	}
}

func TestNewTokenManagerValidation(t *testing.T) {
	if _, err := NewTokenManager(TokenConfig{}); err == nil {
		t.Fatal("expected error for missing secrets")
	}
	same := []byte("shared")
	if _, err := NewTokenManager(TokenConfig{AccessSecret: same, RefreshSecret: same}); err == nil {
		t.Fatal("expected error for identical secrets")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	manager, err := NewTokenManager(testTokenConfig())
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}
	token, expiresAt, err := manager.IssueAccessToken("user-1", "alice@example.com", "alice")
	if err != nil {
		t.Fatalf("IssueAccessToken returned error: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("expected expiry in the future")
	}
	claims, err := manager.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("ParseAccessToken returned error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %s", claims.Subject)
	}
	if claims.Email != "alice@example.com" || claims.Username != "alice" {
		t.Fatalf("unexpected identity claims: %q %q", claims.Email, claims.Username)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	manager, err := NewTokenManager(testTokenConfig())
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}
	token, _, err := manager.IssueRefreshToken("user-1")
	if err != nil {
		t.Fatalf("IssueRefreshToken returned error: %v", err)
	}
	claims, err := manager.ParseRefreshToken(token)
	if err != nil {
		t.Fatalf("ParseRefreshToken returned error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %s", claims.Subject)
	}
}

func TestTokenClassesAreNotInterchangeable(t *testing.T) {
	manager, err := NewTokenManager(testTokenConfig())
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}
	access, _, err := manager.IssueAccessToken("user-1", "alice@example.com", "alice")
	if err != nil {
		t.Fatalf("IssueAccessToken returned error: %v", err)
	}
	refresh, _, err := manager.IssueRefreshToken("user-1")
	if err != nil {
		t.Fatalf("IssueRefreshToken returned error: %v", err)
	}
	if _, err := manager.ParseRefreshToken(access); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected access token to fail refresh verification, got %v", err)
	}
	if _, err := manager.ParseAccessToken(refresh); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected refresh token to fail access verification, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	manager, err := NewTokenManager(testTokenConfig())
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}
	past := time.Now().Add(-2 * time.Hour)
	manager.now = func() time.Time { return past }
	token, _, err := manager.IssueAccessToken("user-1", "alice@example.com", "alice")
	if err != nil {
		t.Fatalf("IssueAccessToken returned error: %v", err)
	}
	manager.now = time.Now
	_, err = manager.ParseAccessToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected expired token error to map to ErrUnauthorized, got %v", err)
	}
}

func TestMalformedTokenRejected(t *testing.T) {
	manager, err := NewTokenManager(testTokenConfig())
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}
	if _, err := manager.ParseAccessToken("not.a.jwt"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for malformed token, got %v", err)
	}
}
