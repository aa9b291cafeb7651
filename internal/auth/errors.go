package auth

import "errors"

// Session operations report failures through this sentinel set. Handlers map
// each sentinel to a stable HTTP status; anything else is treated as internal.
var (
	// ErrValidation marks missing or malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a duplicate unique key (username or email).
	ErrConflict = errors.New("already exists")
	// ErrNotFound marks a lookup that matched no record.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks bad credentials, a bad/expired/replayed token, or
	// a missing authenticated context.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrCorruptCredential marks a stored password hash that cannot be parsed.
	// It signals data corruption, never a simple mismatch.
	ErrCorruptCredential = errors.New("corrupt credential record")
	// ErrInternal wraps hashing, signing, or store faults so their detail never
	// reaches the transport response.
	ErrInternal = errors.New("internal error")
	// ErrRateLimited marks a login attempt rejected by the throttle.
	ErrRateLimited = errors.New("too many login attempts")
)

// Token verification failures. All of them collapse to ErrUnauthorized at the
// session-manager boundary; the distinct sentinels keep tests and logs precise.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token signature invalid")
	ErrTokenMalformed = errors.New("token malformed")
)
