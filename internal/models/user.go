package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	Email          string
	Name           string
	HashedPassword string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Principal is the authenticated identity derived from a verified access
// token. It is self contained: building it never touches storage.
type Principal struct {
	UserID uuid.UUID
	Email  string
}
