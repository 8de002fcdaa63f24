// Package authservice implements registration, login (local, guest, and
// externally-issued JWT), and the in-memory opaque session token map.
package authservice

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	mrand "math/rand/v2"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"blokusserver/internal/logging"
	"blokusserver/internal/metrics"

	"go.uber.org/zap"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

const minPasswordLength = 6

type sessionEntry struct {
	userID    int64
	username  string
	expiresAt time.Time
}

// Service owns the in-memory session map and mediates every authentication
// path. A single mutex guards the map, mirroring the teacher's
// single-mutex-over-the-whole-map discipline; nothing here is held while a
// database or JWKS call is in flight.
type Service struct {
	store    Store
	verifier TokenVerifier

	sessionDuration time.Duration
	saltRounds      int

	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	guestCounter atomic.Int64
}

// New returns a Service. verifier may be nil if JWT login is not configured;
// LoginWithJWT then always fails.
func New(store Store, verifier TokenVerifier, sessionDuration time.Duration, saltRounds int) *Service {
	if saltRounds < 1 {
		saltRounds = 1
	}
	return &Service{
		store:           store,
		verifier:        verifier,
		sessionDuration: sessionDuration,
		saltRounds:      saltRounds,
		sessions:        make(map[string]*sessionEntry),
	}
}

// RegisterUser validates username/password and persists a new account with
// a salted, iterated SHA-256 password hash.
func (s *Service) RegisterUser(ctx context.Context, username, password string) (int64, error) {
	if !usernamePattern.MatchString(username) {
		metrics.AuthOutcomes.WithLabelValues("register", "invalid_username").Inc()
		return 0, ErrUsernameInvalid
	}
	if len(password) < minPasswordLength {
		metrics.AuthOutcomes.WithLabelValues("register", "password_too_short").Inc()
		return 0, ErrPasswordTooShort
	}

	available, err := s.store.IsUsernameAvailable(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("check username availability: %w", err)
	}
	if !available {
		metrics.AuthOutcomes.WithLabelValues("register", "username_taken").Inc()
		return 0, ErrUsernameTaken
	}

	hash, err := hashPassword(password, s.saltRounds)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	userID, err := s.store.CreateUser(ctx, username, hash)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	metrics.AuthOutcomes.WithLabelValues("register", "success").Inc()
	return userID, nil
}

// LoginUser verifies local credentials and issues a fresh session token.
func (s *Service) LoginUser(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		metrics.AuthOutcomes.WithLabelValues("login", "lookup_failed").Inc()
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !s.verifyPassword(password, user.PasswordHash) {
		metrics.AuthOutcomes.WithLabelValues("login", "bad_credentials").Inc()
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		metrics.AuthOutcomes.WithLabelValues("login", "inactive").Inc()
		return nil, ErrAccountInactive
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		logging.Warn(ctx, "update last login failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	result := s.issueSession(ctx, user.ID, user.Username)
	metrics.AuthOutcomes.WithLabelValues("login", "success").Inc()
	return result, nil
}

// LoginGuest mints a non-persisted guest identity (Guest<n>) and issues a
// session for it.
func (s *Service) LoginGuest(ctx context.Context, requestedName string) (*AuthResult, error) {
	name := requestedName
	if name == "" {
		name = fmt.Sprintf("Guest%d", s.guestCounter.Add(1))
	}
	// Guests use negative synthetic ids so they can never collide with a
	// persisted user id.
	guestID := -s.guestCounter.Add(1)

	result := s.issueSession(ctx, guestID, name)
	metrics.AuthOutcomes.WithLabelValues("guest", "success").Inc()
	return result, nil
}

// LoginWithJWT verifies token against the configured JWKS and either binds
// to an existing account (by subject) or creates one on first sight.
func (s *Service) LoginWithJWT(ctx context.Context, token string) (*AuthResult, error) {
	if s.verifier == nil {
		metrics.AuthOutcomes.WithLabelValues("jwt", "not_configured").Inc()
		return nil, fmt.Errorf("%w: jwt login not configured", ErrJWTRejected)
	}

	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		metrics.AuthOutcomes.WithLabelValues("jwt", "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrJWTRejected, err)
	}

	usernameHint := claims.PreferredUsername
	if usernameHint == "" {
		usernameHint = claims.Subject
	}

	user, err := s.store.FindOrCreateExternalUser(ctx, claims.Subject, usernameHint)
	if err != nil {
		return nil, fmt.Errorf("bind external user: %w", err)
	}

	result := s.issueSession(ctx, user.ID, user.Username)
	metrics.AuthOutcomes.WithLabelValues("jwt", "success").Inc()
	return result, nil
}

func (s *Service) issueSession(ctx context.Context, userID int64, username string) *AuthResult {
	token := generateToken(ctx)
	expiresAt := time.Now().Add(s.sessionDuration)

	s.mu.Lock()
	s.sessions[token] = &sessionEntry{userID: userID, username: username, expiresAt: expiresAt}
	s.mu.Unlock()

	return &AuthResult{UserID: userID, Username: username, Token: token, ExpireAt: expiresAt}
}

// ValidateSession returns session info for a live token, or false if the
// token is unknown or expired. An expired entry is removed as a side effect.
func (s *Service) ValidateSession(token string) (*SessionInfo, bool) {
	s.mu.RLock()
	entry, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, false
	}

	return &SessionInfo{UserID: entry.userID, Username: entry.username, ExpiresAt: entry.expiresAt}, true
}

// RefreshSession extends a live token's expiry to now + sessionDuration.
// Reports false if the token is unknown or already expired.
func (s *Service) RefreshSession(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return false
	}
	entry.expiresAt = time.Now().Add(s.sessionDuration)
	return true
}

// InvalidateAllUserSessions removes every session belonging to userID, used
// on password change.
func (s *Service) InvalidateAllUserSessions(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, entry := range s.sessions {
		if entry.userID == userID {
			delete(s.sessions, token)
		}
	}
}

// CleanupExpiredSessions removes every session past its expiresAt and
// returns the count removed. Called periodically by the top-level server.
func (s *Service) CleanupExpiredSessions() int {
	now := time.Now()
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for token, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// hashPassword derives salt:hex(SHA256^rounds(password||salt)). rounds > 1
// chains the digest through SHA-256 again, folding PASSWORD_SALT_ROUNDS into
// the cost of an offline guess without pulling in a separate KDF.
func hashPassword(password string, rounds int) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	digest := iteratedSHA256(password, saltHex, rounds)
	return saltHex + ":" + hex.EncodeToString(digest), nil
}

func (s *Service) verifyPassword(password, stored string) bool {
	saltHex, wantHex, ok := splitHash(stored)
	if !ok {
		return false
	}
	want, err := hex.DecodeString(wantHex)
	if err != nil {
		return false
	}

	got := iteratedSHA256(password, saltHex, s.saltRounds)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func splitHash(stored string) (salt, hash string, ok bool) {
	for i := 0; i < len(stored); i++ {
		if stored[i] == ':' {
			return stored[:i], stored[i+1:], true
		}
	}
	return "", "", false
}

func iteratedSHA256(password, saltHex string, rounds int) []byte {
	sum := sha256.Sum256([]byte(password + saltHex))
	digest := sum[:]
	for i := 1; i < rounds; i++ {
		next := sha256.Sum256(digest)
		digest = next[:]
	}
	return digest
}

// generateToken returns a 64-hex-character session token from a CSPRNG,
// falling back to a seeded PRNG (logged as a warning) if the CSPRNG read
// fails — which in practice only happens on a badly broken host.
func generateToken(ctx context.Context) string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}

	logging.Warn(ctx, "crypto/rand unavailable, falling back to non-cryptographic session token source")
	for i := range buf {
		buf[i] = byte(mrand.IntN(256))
	}
	return hex.EncodeToString(buf)
}
