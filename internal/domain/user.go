package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is how account timestamps are rendered to clients,
// e.g. "2025-09-29 14:11:43 UTC".
const TimestampLayout = "2006-01-02 15:04:05 MST"

// Credential is a persisted account record, including its password hash.
type Credential struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
}

// PublicProfile is the outward-facing projection of a Credential.
type PublicProfile struct {
	ID        uuid.UUID
	Username  string
	Email     string
	CreatedAt time.Time
}

// Public drops secret material from the credential.
func (c Credential) Public() PublicProfile {
	return PublicProfile{
		ID:        c.ID,
		Username:  c.Username,
		Email:     c.Email,
		CreatedAt: c.CreatedAt.UTC(),
	}
}

// Identity is the caller proven by a bearer token for the lifetime of one request.
type Identity struct {
	UserID uuid.UUID
}
