package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "streamnest"

// TokenConfig carries the four signing parameters required by the token
// manager. The access and refresh secrets must differ so that a leaked secret
// compromises only one token class. The config is resolved once at startup and
// passed in explicitly; the manager holds no ambient process state.
type TokenConfig struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
}

// AccessClaims is the signed claim bundle carried by short-lived access
// tokens. Subject holds the user ID.
type AccessClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RefreshClaims is the minimal claim bundle carried by refresh tokens.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HMAC-signed access and refresh tokens.
// It is safe for concurrent use after construction.
type TokenManager struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenManager validates the configuration and constructs a manager.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("access and refresh token secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{cfg: cfg, now: time.Now}, nil
}

// AccessTTL exposes the configured access-token lifetime for cookie expiry.
func (m *TokenManager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL exposes the configured refresh-token lifetime for cookie expiry.
func (m *TokenManager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// IssueAccessToken signs a short-lived token binding the user's identity
// claims to an expiry.
func (m *TokenManager) IssueAccessToken(userID, email, username string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.cfg.AccessTTL)
	claims := AccessClaims{
		Email:    email,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.AccessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", ErrInternal)
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken signs a longer-lived token carrying only the user ID.
func (m *TokenManager) IssueRefreshToken(userID string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.cfg.RefreshTTL)
	// A unique token ID keeps consecutive refresh tokens for the same user
	// distinct even when minted within the same second.
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.RefreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", ErrInternal)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken verifies signature and expiry against the access secret.
func (m *TokenManager) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, m.cfg.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefreshToken verifies signature and expiry against the refresh secret.
func (m *TokenManager) ParseRefreshToken(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, m.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *TokenManager) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	switch {
	case err == nil && token.Valid:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrTokenMalformed, ErrUnauthorized)
	default:
		return fmt.Errorf("%w: %w", ErrTokenInvalid, ErrUnauthorized)
	}
}
