package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"streamnest/internal/models"
)

// PostgresCredentialStore persists accounts to a Postgres table, allowing
// multiple API replicas to share credential state. Rotation uses a
// conditional UPDATE so the database arbitrates concurrent refreshes.
type PostgresCredentialStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCredentialStore opens a Postgres-backed credential store using
// the provided DSN and creates the users table if it does not exist.
func NewPostgresCredentialStore(ctx context.Context, dsn string) (*PostgresCredentialStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres credential dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres credential config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres credential pool: %w", err)
	}
	store := &PostgresCredentialStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the Postgres connection pool resources.
func (s *PostgresCredentialStore) Close(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *PostgresCredentialStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    email TEXT NOT NULL,
    full_name TEXT NOT NULL,
    avatar_url TEXT NOT NULL DEFAULT '',
    cover_image_url TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    refresh_token TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (lower(username));
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email));
`)
	if err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}

// CreateUser inserts a new account. Uniqueness of username and email is
// enforced by the database and mapped to ErrConflict.
func (s *PostgresCredentialStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if s.pool == nil {
		return models.User{}, fmt.Errorf("postgres credential pool not configured")
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
INSERT INTO users (id, username, email, full_name, avatar_url, cover_image_url, password_hash, refresh_token, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, $9)
`, user.ID, user.Username, user.Email, user.FullName, user.AvatarURL, user.CoverImageURL, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%w: username or email already registered", ErrConflict)
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// FindUserByIdentifier looks an account up by username or email,
// case-insensitively.
func (s *PostgresCredentialStore) FindUserByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	if s.pool == nil {
		return models.User{}, fmt.Errorf("postgres credential pool not configured")
	}
	row := s.pool.QueryRow(ctx, `
SELECT id, username, email, full_name, avatar_url, cover_image_url, password_hash, refresh_token, created_at, updated_at
FROM users
WHERE lower(username) = lower($1) OR lower(email) = lower($1)
`, strings.TrimSpace(identifier))
	return scanUser(row)
}

// GetUser fetches an account by ID.
func (s *PostgresCredentialStore) GetUser(ctx context.Context, id string) (models.User, error) {
	if s.pool == nil {
		return models.User{}, fmt.Errorf("postgres credential pool not configured")
	}
	row := s.pool.QueryRow(ctx, `
SELECT id, username, email, full_name, avatar_url, cover_image_url, password_hash, refresh_token, created_at, updated_at
FROM users
WHERE id = $1
`, id)
	return scanUser(row)
}

// UpdatePasswordHash replaces the stored password hash.
func (s *PostgresCredentialStore) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if s.pool == nil {
		return fmt.Errorf("postgres credential pool not configured")
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3
`, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return nil
}

// SetRefreshToken overwrites the refresh-token slot unconditionally. An empty
// token clears the slot.
func (s *PostgresCredentialStore) SetRefreshToken(ctx context.Context, id, token string) error {
	if s.pool == nil {
		return fmt.Errorf("postgres credential pool not configured")
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE users SET refresh_token = $1, updated_at = $2 WHERE id = $3
`, token, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return nil
}

// RotateRefreshToken swaps the slot to next only if it still holds presented.
// The conditional WHERE makes the database the arbiter when two refreshes
// race; the loser sees zero rows affected.
func (s *PostgresCredentialStore) RotateRefreshToken(ctx context.Context, id, presented, next string) (bool, error) {
	if s.pool == nil {
		return false, fmt.Errorf("postgres credential pool not configured")
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE users SET refresh_token = $1, updated_at = $2 WHERE id = $3 AND refresh_token = $4
`, next, time.Now().UTC(), id, presented)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.AvatarURL,
		&user.CoverImageURL,
		&user.PasswordHash,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("%w: user", ErrNotFound)
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
