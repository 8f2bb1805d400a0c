// Package collab declares the external subsystems the coordinator calls
// but does not own: credential verification, the durable membership
// records, and the durable presence flag. Implementations live under
// internal/adapters; the coordinator never sees past these interfaces.
package collab

import (
	"context"
	"errors"

	"github.com/voxhall/voxhall/internal/domain"
)

// ErrNotFound is returned by lookups for records that do not exist.
var ErrNotFound = errors.New("not found")

// CredentialVerifier resolves a handshake credential to a user identity.
// Called once per connection, before registration.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (domain.User, error)
}

// MembershipStore answers the authorization gate's questions against the
// durable channel and membership records.
type MembershipStore interface {
	GetChannel(ctx context.Context, id domain.ChannelID) (domain.Channel, error)
	IsMember(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (bool, error)
}

// PresenceStore persists the user's online flag. Writes are best-effort:
// callers log failures and carry on.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID domain.UserID, online bool) error
}
