package jwtauth

import "errors"

// Sentinel errors returned by Verifier.Verify, distinguished so callers can
// branch without parsing message text.
var (
	ErrNotInitialized   = errors.New("jwt verifier: not initialized")
	ErrMalformedToken   = errors.New("jwt verifier: malformed token")
	ErrKeyNotFound      = errors.New("jwt verifier: key not found for kid")
	ErrInvalidSignature = errors.New("jwt verifier: invalid signature")
	ErrIssuerMismatch   = errors.New("jwt verifier: issuer mismatch")
	ErrAudienceMismatch = errors.New("jwt verifier: audience mismatch")
	ErrExpired          = errors.New("jwt verifier: token expired")
	ErrNotYetValid      = errors.New("jwt verifier: token not yet valid")
)
