// Package jwtauth verifies externally-issued RS256 access tokens against a
// JWKS endpoint: fetch-and-cache keys by kid, rebuild a PKCS#1 PEM public
// key from each JWK's (n, e), and validate signature, issuer, audience
// set-membership, and exp/nbf with a configurable grace period.
package jwtauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"blokusserver/internal/logging"
	"blokusserver/internal/metrics"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Claims is the set of token fields the rest of the server cares about.
type Claims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
}

// Config configures a Verifier.
type Config struct {
	JWKSURL         string
	Issuer          string
	Audiences       []string
	CacheTTL        time.Duration // default 10 minutes
	RefreshInterval time.Duration // default 5 minutes
	GracePeriod     time.Duration // default 30 seconds
	FetchTimeout    time.Duration // default 5 seconds
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = 10 * time.Minute
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 5 * time.Minute
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 30 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 5 * time.Second
	}
	return c
}

// Verifier fetches, caches, and uses a JWKS to validate RS256 access tokens.
type Verifier struct {
	cfg    Config
	client *http.Client

	mu       sync.RWMutex
	keys     map[string]*cachedKey
	cachedAt time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewVerifier performs an initial blocking JWKS fetch and returns a ready
// Verifier, or an error if that first fetch fails.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	cfg = cfg.withDefaults()

	v := &Verifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		stopCh: make(chan struct{}),
	}

	if err := v.refresh(ctx); err != nil {
		return nil, fmt.Errorf("jwt verifier init: %w", err)
	}

	return v, nil
}

// refresh performs an all-or-nothing JWKS fetch and swap: either every key
// in the response replaces the cache, or the cache is left untouched.
func (v *Verifier) refresh(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, v.cfg.FetchTimeout)
	defer cancel()

	keys, err := fetchJWKS(fetchCtx, v.client, v.cfg.JWKSURL)
	if err != nil {
		metrics.JWKSRefreshFailures.Inc()
		return err
	}

	v.mu.Lock()
	v.keys = keys
	v.cachedAt = time.Now()
	v.mu.Unlock()

	return nil
}

func (v *Verifier) lookup(kid string) (*cachedKey, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	k, ok := v.keys[kid]
	return k, ok
}

func (v *Verifier) isStale() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.keys == nil {
		return true
	}
	return time.Since(v.cachedAt) > v.cfg.CacheTTL
}

// StartBackgroundRefresh launches a goroutine that wakes on cfg.RefreshInterval
// and refreshes the JWKS cache once it's past its TTL. It returns
// immediately; call Stop to terminate the goroutine.
func (v *Verifier) StartBackgroundRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(v.cfg.RefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !v.isStale() {
					continue
				}
				if err := v.refresh(ctx); err != nil {
					logging.Warn(ctx, "jwks background refresh failed", zap.Error(err))
				}
			case <-v.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the background refresh goroutine, if running.
func (v *Verifier) Stop() {
	v.stopOnce.Do(func() {
		close(v.stopCh)
	})
}

// Verify parses and validates tokenString, returning its claims on success
// or one of this package's sentinel errors (wrapped with context) on
// failure.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	kid, err := extractKid(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	key, ok := v.lookup(kid)
	if !ok {
		if err := v.refresh(ctx); err != nil {
			logging.Warn(ctx, "forced jwks refresh after cache miss failed", zap.Error(err))
		}
		key, ok = v.lookup(kid)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
		}
	}

	pubKey, err := publicKeyFromJWK(key)
	if err != nil {
		return nil, fmt.Errorf("rebuild public key for kid %s: %w", kid, err)
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return pubKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if err := v.validateClaims(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

func (v *Verifier) validateClaims(claims *Claims) error {
	if claims.Issuer != v.cfg.Issuer {
		return fmt.Errorf("%w: got %q want %q", ErrIssuerMismatch, claims.Issuer, v.cfg.Issuer)
	}

	if len(v.cfg.Audiences) > 0 {
		if !audienceIntersects(claims.Audience, v.cfg.Audiences) {
			return fmt.Errorf("%w: token aud %v not in %v", ErrAudienceMismatch, claims.Audience, v.cfg.Audiences)
		}
	}

	now := time.Now()
	if claims.ExpiresAt != nil && now.After(claims.ExpiresAt.Time.Add(v.cfg.GracePeriod)) {
		return fmt.Errorf("%w: expired at %s", ErrExpired, claims.ExpiresAt.Time)
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time.Add(-v.cfg.GracePeriod)) {
		return fmt.Errorf("%w: not valid until %s", ErrNotYetValid, claims.NotBefore.Time)
	}

	return nil
}

// audienceIntersects reports whether token and allowed share at least one
// element. A token with no audience claims never intersects.
func audienceIntersects(token jwt.ClaimStrings, allowed []string) bool {
	if len(token) == 0 {
		return false
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = struct{}{}
	}
	for _, t := range token {
		if _, ok := allowedSet[t]; ok {
			return true
		}
	}
	return false
}

// extractKid base64url-decodes a JWT's header segment and reads its kid,
// without verifying anything yet.
func extractKid(tokenString string) (string, error) {
	parts := strings.SplitN(tokenString, ".", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("expected 3 dot-separated segments, got %d", len(parts))
	}

	header, err := decodeHeader(parts[0])
	if err != nil {
		return "", err
	}

	kid, ok := header["kid"].(string)
	if !ok || kid == "" {
		return "", fmt.Errorf("kid missing from header")
	}
	return kid, nil
}
