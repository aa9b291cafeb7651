package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"streamnest/internal/models"
)

// CredentialStore is the persistence surface the session manager depends on.
// Implementations must treat usernames and emails case-insensitively and must
// make RotateRefreshToken a conditional swap so concurrent refreshes against
// the same stored token cannot both succeed.
type CredentialStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByIdentifier(ctx context.Context, identifier string) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, presented, next string) (bool, error)
}

// RegisterParams carries the fields accepted when creating an account.
// AvatarURL and CoverImageURL are resolved by the caller before registration,
// typically from an upload.
type RegisterParams struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// SessionResult bundles the tokens minted by a successful login or refresh
// together with the sanitized account record.
type SessionResult struct {
	User             models.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionManager drives the credential and session-token lifecycle. All state
// lives in the credential store; the manager itself is safe for concurrent
// use.
type SessionManager struct {
	store  CredentialStore
	tokens *TokenManager
	hasher *PasswordHasher
	now    func() time.Time
}

// SessionOption customises a SessionManager.
type SessionOption func(*SessionManager)

// WithPasswordHasher overrides the default bcrypt hasher, mainly so tests can
// lower the cost.
func WithPasswordHasher(h *PasswordHasher) SessionOption {
	return func(m *SessionManager) {
		if h != nil {
			m.hasher = h
		}
	}
}

// WithClock overrides the manager's time source.
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSessionManager wires the manager to its store and token manager.
func NewSessionManager(store CredentialStore, tokens *TokenManager, opts ...SessionOption) (*SessionManager, error) {
	if store == nil {
		return nil, errors.New("credential store is required")
	}
	if tokens == nil {
		return nil, errors.New("token manager is required")
	}
	manager := &SessionManager{
		store:  store,
		tokens: tokens,
		hasher: NewPasswordHasher(0),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(manager)
	}
	return manager, nil
}

// Register validates the supplied fields, hashes the password, and persists a
// new account. The returned user is sanitized.
func (m *SessionManager) Register(ctx context.Context, params RegisterParams) (models.User, error) {
	username := strings.TrimSpace(params.Username)
	email := strings.TrimSpace(params.Email)
	fullName := strings.TrimSpace(params.FullName)
	if username == "" || email == "" || fullName == "" || params.Password == "" {
		return models.User{}, fmt.Errorf("%w: username, email, full name, and password are required", ErrValidation)
	}
	if strings.TrimSpace(params.AvatarURL) == "" {
		return models.User{}, fmt.Errorf("%w: an avatar is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.User{}, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(params.Password) < 6 {
		return models.User{}, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	hash, err := m.hasher.Hash(params.Password)
	if err != nil {
		return models.User{}, err
	}
	user := models.User{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     params.AvatarURL,
		CoverImageURL: params.CoverImageURL,
		PasswordHash:  hash,
	}
	created, err := m.store.CreateUser(ctx, user)
	if err != nil {
		return models.User{}, err
	}
	return created.Sanitized(), nil
}

// Login verifies the password for the account matching identifier (username
// or email), mints a fresh access/refresh pair, and stores the refresh token
// as the account's single active session slot. Unknown accounts surface as
// ErrNotFound; a wrong password surfaces as ErrUnauthorized without revealing
// which check failed beyond that.
func (m *SessionManager) Login(ctx context.Context, identifier, password string) (SessionResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return SessionResult{}, fmt.Errorf("%w: identifier and password are required", ErrValidation)
	}
	user, err := m.store.FindUserByIdentifier(ctx, identifier)
	if err != nil {
		return SessionResult{}, err
	}
	if err := m.hasher.Verify(password, user.PasswordHash); err != nil {
		return SessionResult{}, err
	}
	return m.mintSession(ctx, user)
}

// Refresh exchanges a valid, current refresh token for a new access/refresh
// pair. The presented token must match the stored slot byte for byte; a token
// that verifies but no longer matches has been superseded and is rejected so
// a replayed old token cannot mint new credentials.
func (m *SessionManager) Refresh(ctx context.Context, presented string) (SessionResult, error) {
	if presented == "" {
		return SessionResult{}, fmt.Errorf("%w: refresh token is required", ErrUnauthorized)
	}
	claims, err := m.tokens.ParseRefreshToken(presented)
	if err != nil {
		return SessionResult{}, err
	}
	user, err := m.store.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SessionResult{}, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
		}
		return SessionResult{}, err
	}
	// Mint the full pair before touching the store so a signing failure
	// cannot burn the presented token without delivering a replacement.
	next, refreshExpiry, err := m.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return SessionResult{}, err
	}
	access, accessExpiry, err := m.tokens.IssueAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		return SessionResult{}, err
	}
	swapped, err := m.store.RotateRefreshToken(ctx, user.ID, presented, next)
	if err != nil {
		return SessionResult{}, err
	}
	if !swapped {
		return SessionResult{}, fmt.Errorf("%w: refresh token is expired or used", ErrUnauthorized)
	}
	return SessionResult{
		User:             user.Sanitized(),
		AccessToken:      access,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     next,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Logout clears the account's refresh-token slot. Any refresh token minted
// earlier is dead afterwards; outstanding access tokens simply age out.
func (m *SessionManager) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrUnauthorized)
	}
	return m.store.SetRefreshToken(ctx, userID, "")
}

// ChangePassword verifies the current password before storing a new hash. The
// refresh-token slot is left untouched, so the active session survives the
// change.
func (m *SessionManager) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, confirmPassword string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrUnauthorized)
	}
	if oldPassword == "" || newPassword == "" {
		return fmt.Errorf("%w: old and new passwords are required", ErrValidation)
	}
	if newPassword != confirmPassword {
		return fmt.Errorf("%w: new password and confirmation do not match", ErrValidation)
	}
	if len(newPassword) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := m.hasher.Verify(oldPassword, user.PasswordHash); err != nil {
		return err
	}
	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return m.store.UpdatePasswordHash(ctx, user.ID, hash)
}

// Authenticate verifies an access token and loads the account it names. The
// returned user is sanitized.
func (m *SessionManager) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	if accessToken == "" {
		return models.User{}, fmt.Errorf("%w: access token is required", ErrUnauthorized)
	}
	claims, err := m.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return models.User{}, err
	}
	user, err := m.store.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.User{}, fmt.Errorf("%w: invalid access token", ErrUnauthorized)
		}
		return models.User{}, err
	}
	return user.Sanitized(), nil
}

func (m *SessionManager) mintSession(ctx context.Context, user models.User) (SessionResult, error) {
	refresh, refreshExpiry, err := m.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return SessionResult{}, err
	}
	if err := m.store.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return SessionResult{}, err
	}
	access, accessExpiry, err := m.tokens.IssueAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		return SessionResult{}, err
	}
	return SessionResult{
		User:             user.Sanitized(),
		AccessToken:      access,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}
