package authservice

import (
	"context"
	"time"

	"blokusserver/internal/jwtauth"
)

// User is the subset of a persisted account that authservice needs. The
// database gateway owns the full row; this is the read/write slice that
// crosses the package boundary.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	IsActive     bool
}

// Store is the persistence boundary authservice depends on. internal/database
// implements this; tests substitute an in-memory fake.
type Store interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	IsUsernameAvailable(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
	UpdateLastLogin(ctx context.Context, userID int64) error
	// FindOrCreateExternalUser maps an external identity (subject, plus a
	// display name hint) to an internal user id idempotently: the same
	// subject always resolves to the same user id, creating a row on first
	// sight.
	FindOrCreateExternalUser(ctx context.Context, subject, usernameHint string) (*User, error)
}

// TokenVerifier is the JWT verification boundary authservice depends on.
// *jwtauth.Verifier satisfies this.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*jwtauth.Claims, error)
}

// AuthResult is returned by every successful login/register/guest/jwt
// operation.
type AuthResult struct {
	UserID   int64
	Username string
	Token    string
	ExpireAt time.Time
}

// SessionInfo is what ValidateSession returns for a live token.
type SessionInfo struct {
	UserID    int64
	Username  string
	ExpiresAt time.Time
}
