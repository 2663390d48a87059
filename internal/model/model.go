// Package model defines domain entities used by services, repositories and the client core.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access/refresh tokens (refresh optional).
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	CreatedAt time.Time
}

// Profile is the public view of the signed-in user.
type Profile struct {
	UserID    uuid.UUID
	Username  string
	CreatedAt time.Time
}

// ProfileOf strips credentials from a stored user.
func ProfileOf(u User) Profile {
	return Profile{UserID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}
