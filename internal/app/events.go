package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
)

// Wire event discriminators. Every frame is a JSON object whose "type"
// field carries one of these.
const (
	// client -> coordinator
	EvtJoinVoice     = "join-voice"
	EvtLeaveVoice    = "leave-voice"
	EvtSignal        = "signal"
	EvtWatchTextRoom = "watch-text-room"
	EvtTypingStart   = "typing-start"
	EvtTypingStop    = "typing-stop"

	// coordinator -> client
	EvtVoicePeers      = "voice-peers"
	EvtVoicePeerJoined = "voice-peer-joined"
	EvtVoicePeerLeft   = "voice-peer-left"
	EvtVoiceError      = "voice-error"
	EvtPresenceUpdate  = "presence-update"
)

// Signal payloads must carry one of these discriminators to be relayed.
var signalKinds = map[string]struct{}{
	"offer":     {},
	"answer":    {},
	"candidate": {},
}

type voicePeersEvent struct {
	Type      string           `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	Peers     []core.PeerInfo  `json:"peers"`
}

type peerJoinedEvent struct {
	Type         string      `json:"type"`
	ConnectionID core.ConnID `json:"connectionId"`
	User         domain.User `json:"user"`
}

type peerLeftEvent struct {
	Type         string      `json:"type"`
	ConnectionID core.ConnID `json:"connectionId"`
}

type signalEvent struct {
	Type string          `json:"type"`
	From core.ConnID     `json:"from"`
	Data json.RawMessage `json:"data"`
}

type presenceEvent struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
	Online bool          `json:"online"`
}

type typingEvent struct {
	Type      string           `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	Username  string           `json:"username"`
}

type roomEvent struct {
	Type      string           `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
}

// VoiceErrorEvent is exported so the transport adapter can surface
// authorization denials with the same envelope the coordinator uses.
type VoiceErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewVoiceError(message string) VoiceErrorEvent {
	return VoiceErrorEvent{Type: EvtVoiceError, Message: message}
}

// Encode marshals an event into a wire frame. Event structs are fully
// marshalable; a failure here is a programming error, logged and
// swallowed as a nil frame that fan-out paths skip.
func Encode(v any) core.Frame {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.events").Msg("event marshal failed")
		return nil
	}
	return core.Frame(b)
}
