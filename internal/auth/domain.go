package auth

import (
	"errors"
	"time"
)

// CurrentTokenVersion is the freshness marker stamped into every issued
// credential. Tokens minted before a permission-model change carry an older
// version and are forced through re-authentication instead of being
// resolved with ambiguous privileges.
const CurrentTokenVersion = 2

// Identity represents an account that can authenticate. IsPlatform marks an
// intentionally platform-level operator; an identity with zero tenant
// memberships is also treated as platform-level for compatibility.
type Identity struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	IsActive     bool
	IsPlatform   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Typed resolution failures. They are values, not panics, and are mapped to
// a generic "unauthenticated" response so callers never learn why
// verification failed.
var (
	ErrMissingCredential = errors.New("auth: missing credential")
	ErrInvalidCredential = errors.New("auth: invalid credential")
	ErrInactiveAccount   = errors.New("auth: inactive account")
	ErrStaleCredential   = errors.New("auth: stale credential version")
)
