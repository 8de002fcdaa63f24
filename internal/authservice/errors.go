package authservice

import "errors"

var (
	ErrUsernameInvalid   = errors.New("authservice: username must be 3-20 chars of letters, digits, underscore")
	ErrUsernameTaken     = errors.New("authservice: username already taken")
	ErrPasswordTooShort  = errors.New("authservice: password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("authservice: invalid username or password")
	ErrAccountInactive   = errors.New("authservice: account is deactivated")
	ErrSessionNotFound   = errors.New("authservice: session not found or expired")
	ErrJWTRejected       = errors.New("authservice: jwt rejected")
)
