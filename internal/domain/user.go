// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID int64

// User is the public identity snapshot attached to a connection at
// handshake. Read-only for the connection's lifetime; a client sees
// fresh data only by reconnecting.
type User struct {
	ID        UserID `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, username, avatarURL string) (User, error) {
	if len(username) == 0 {
		return User{}, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return User{}, ErrUsernameTooLong
	}
	return User{ID: id, Username: username, AvatarURL: avatarURL}, nil
}
