package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// PublicUser is the projection of User that is safe to return to clients.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Claims defines the structure of the JWT claims. Subject holds the account email,
// ID a per-issuance token id.
type Claims struct {
	jwt.RegisteredClaims
}

// Session is the result of a successful login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *PublicUser `json:"user"`
}

// ProfileUpdate lists the fields a user may change. Nil or empty means unchanged.
type ProfileUpdate struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}
