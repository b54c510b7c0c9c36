package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is an opaque random string persisted server side.
// Single use: rotation deletes the row and inserts a new one.
type RefreshToken struct {
	Token     string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair issued together on register, login and refresh
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
