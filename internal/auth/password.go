package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher wraps bcrypt with a configurable work factor. Hash embeds a
// per-call random salt in the output; Verify recomputes with the embedded salt
// and compares in constant time.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher constructs a hasher. Costs outside bcrypt's supported
// range fall back to the library default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash derives a salted one-way hash of the plaintext password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required: %w", ErrValidation)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", ErrInternal)
	}
	return string(hashed), nil
}

// Verify reports whether the plaintext matches the stored hash. A hash that
// cannot be parsed is a data-integrity fault (ErrCorruptCredential), never a
// silent mismatch.
func (h *PasswordHasher) Verify(password, encodedHash string) error {
	if strings.TrimSpace(encodedHash) == "" {
		return fmt.Errorf("empty password hash: %w", ErrCorruptCredential)
	}
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return fmt.Errorf("password mismatch: %w", ErrUnauthorized)
	default:
		return fmt.Errorf("parse password hash: %w", ErrCorruptCredential)
	}
}
