package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/collab"
	"github.com/voxhall/voxhall/internal/domain"
)

// DeniedError is an authorization denial carrying the message surfaced
// to the client as a voice-error event.
type DeniedError struct {
	Message string
}

func (e *DeniedError) Error() string { return e.Message }

var (
	ErrChannelNotFound = &DeniedError{Message: "Channel not found"}
	ErrNotVoiceChannel = &DeniedError{Message: "Not a voice channel"}
	ErrNotMember       = &DeniedError{Message: "Not a member"}
)

// Gate decides whether a user may join a voice channel, by consulting
// the durable membership collaborator. Fail-closed: any collaborator
// failure is a denial, never an admission. Authorize blocks on the
// collaborator round trip and therefore must never be called with a
// room or registry lock held.
type Gate struct {
	Members collab.MembershipStore
	Timeout time.Duration
}

func NewGate(members collab.MembershipStore, timeout time.Duration) *Gate {
	return &Gate{Members: members, Timeout: timeout}
}

func (g *Gate) Authorize(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) error {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	ch, err := g.Members.GetChannel(ctx, channelID)
	if errors.Is(err, collab.ErrNotFound) {
		return ErrChannelNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("module", "app.gate").Int64("channel", int64(channelID)).Msg("channel lookup failed, denying")
		return ErrChannelNotFound
	}
	if ch.Type != domain.ChannelVoice {
		return ErrNotVoiceChannel
	}
	// Channels without an owning server (DMs) skip the membership check.
	if ch.ServerID == 0 {
		return nil
	}
	ok, err := g.Members.IsMember(ctx, ch.ServerID, userID)
	if err != nil {
		log.Error().Err(err).Str("module", "app.gate").Int64("server", int64(ch.ServerID)).Int64("user", int64(userID)).Msg("membership check failed, denying")
		return ErrNotMember
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}
