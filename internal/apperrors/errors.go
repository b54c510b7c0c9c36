package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Returned for both unknown email and wrong password so the caller
	// can't tell which one happened
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Access token errors
	// ErrTokenExpired and ErrTokenMalformed exist for logging only: both must
	// be presented to untrusted callers as ErrTokenInvalid
	ErrTokenMissing   = errors.New("no token provided")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token is expired")
	ErrTokenInvalid   = errors.New("invalid or expired token")

	// Refresh token errors
	// Revoked and unknown tokens are indistinguishable: revoking deletes the row
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	ErrRecipeNotFound  = errors.New("recipe not found")
	ErrRecipeForbidden = errors.New("recipe belongs to another user")
)
