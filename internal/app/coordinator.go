package app

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/metrics"
)

// Coordinator orchestrates the connection lifecycle: registration and
// presence on connect, voice room membership, signaling relay, text
// room fan-out, and the cleanup cascade on disconnect.
//
// Per-connection events arrive sequentially from that connection's read
// pump; cross-connection races are serialized by the registry and
// per-room locks. Authorization is resolved before any room mutation.
type Coordinator struct {
	Registry *Registry
	Voice    *RoomTable
	Text     *TextRooms
	Gate     *Gate
	Presence *Presence
}

func NewCoordinator(reg *Registry, gate *Gate, presence *Presence) *Coordinator {
	return &Coordinator{
		Registry: reg,
		Voice:    NewRoomTable(),
		Text:     NewTextRooms(),
		Gate:     gate,
		Presence: presence,
	}
}

// OnConnect registers an authenticated connection and announces the
// user online. A duplicate connection id is a transport logic error;
// the registry has already replaced the stale entry, so we only log.
func (c *Coordinator) OnConnect(ctx context.Context, p *core.Peer) {
	if err := c.Registry.Register(p); err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("conn", string(p.ID)).Msg("register")
	}
	c.Presence.Announce(ctx, p.User.ID, true)
}

// JoinVoice admits the connection to a voice channel. The returned
// error, if any, is a *DeniedError whose message goes back to the
// client as a voice-error; the connection stays in its previous state.
//
// A connection already in another room is removed from it first, with a
// peer-left announced there, so it is never a member of two rooms. The
// joiner receives the existing peer set; existing members receive
// peer-joined.
func (c *Coordinator) JoinVoice(ctx context.Context, connID core.ConnID, channelID domain.ChannelID) error {
	peer, ok := c.Registry.Lookup(connID)
	if !ok {
		// Disconnect raced the join; the cascade already cleaned up.
		return nil
	}

	if err := c.Gate.Authorize(ctx, peer.User.ID, channelID); err != nil {
		log.Info().Str("module", "app.coordinator").Str("conn", string(connID)).Int64("channel", int64(channelID)).Str("reason", err.Error()).Msg("voice join denied")
		return err
	}

	if prev, in := c.Registry.VoiceRoomOf(connID); in {
		if prev == channelID {
			// Rejoin of the current room: re-send the snapshot, no churn.
			c.sendPeers(peer, channelID)
			return nil
		}
		c.Registry.ClearVoiceRoom(connID)
		c.Voice.Leave(prev, connID, Encode(peerLeftEvent{Type: EvtVoicePeerLeft, ConnectionID: connID}))
	}

	joined := Encode(peerJoinedEvent{Type: EvtVoicePeerJoined, ConnectionID: connID, User: peer.User})
	peers := c.Voice.Join(channelID, peer, joined)
	if !c.Registry.SetVoiceRoom(connID, channelID) {
		// The disconnect cascade ran while authorization was in
		// flight. The transport's disconnect event is already spent,
		// so nothing would ever void this membership; undo it now.
		c.Voice.Leave(channelID, connID, Encode(peerLeftEvent{Type: EvtVoicePeerLeft, ConnectionID: connID}))
		log.Info().Str("module", "app.coordinator").Str("conn", string(connID)).Int64("channel", int64(channelID)).Msg("join lost race with disconnect, membership voided")
		return nil
	}

	f := Encode(voicePeersEvent{Type: EvtVoicePeers, ChannelID: channelID, Peers: peers})
	if err := peer.Conn.TrySend(f); err != nil {
		metrics.EventsDropped.Inc()
	}
	log.Info().Str("module", "app.coordinator").Str("conn", string(connID)).Int64("channel", int64(channelID)).Int("peers", len(peers)).Msg("joined voice room")
	return nil
}

func (c *Coordinator) sendPeers(peer *core.Peer, channelID domain.ChannelID) {
	peers := []core.PeerInfo{}
	if room, ok := c.Voice.Get(channelID); ok {
		for _, info := range room.Snapshot() {
			if info.ConnectionID != peer.ID {
				peers = append(peers, info)
			}
		}
	}
	f := Encode(voicePeersEvent{Type: EvtVoicePeers, ChannelID: channelID, Peers: peers})
	if err := peer.Conn.TrySend(f); err != nil {
		metrics.EventsDropped.Inc()
	}
}

// LeaveVoice removes the connection from its current voice room, if
// any. No-op when idle.
func (c *Coordinator) LeaveVoice(connID core.ConnID) {
	prev, in := c.Registry.VoiceRoomOf(connID)
	if !in {
		return
	}
	c.Registry.ClearVoiceRoom(connID)
	c.Voice.Leave(prev, connID, Encode(peerLeftEvent{Type: EvtVoicePeerLeft, ConnectionID: connID}))
	log.Info().Str("module", "app.coordinator").Str("conn", string(connID)).Int64("channel", int64(prev)).Msg("left voice room")
}

// Relay forwards an opaque signaling payload to the target connection.
// The payload must carry a recognized discriminator; beyond that it is
// never parsed. Undeliverable payloads are dropped silently: the sender
// learns about gone peers from peer-left, not from relay errors.
func (c *Coordinator) Relay(from core.ConnID, to core.ConnID, data json.RawMessage) {
	if to == "" || !validSignal(data) {
		metrics.SignalsDropped.WithLabelValues(metrics.ReasonMalformed).Inc()
		log.Debug().Str("module", "app.coordinator").Str("from", string(from)).Msg("malformed signal dropped")
		return
	}
	target, ok := c.Registry.Lookup(to)
	if !ok {
		metrics.SignalsDropped.WithLabelValues(metrics.ReasonUnreachable).Inc()
		log.Debug().Str("module", "app.coordinator").Str("from", string(from)).Str("to", string(to)).Msg("signal target gone, dropped")
		return
	}
	f := Encode(signalEvent{Type: EvtSignal, From: from, Data: data})
	if err := target.Conn.TrySend(f); err != nil {
		metrics.SignalsDropped.WithLabelValues(metrics.ReasonBackpressure).Inc()
		log.Debug().Str("module", "app.coordinator").Str("to", string(to)).Msg("signal dropped, slow client")
		return
	}
	metrics.SignalsRelayed.Inc()
}

func validSignal(data json.RawMessage) bool {
	var disc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &disc); err != nil {
		return false
	}
	_, ok := signalKinds[disc.Type]
	return ok
}

// WatchText subscribes the connection to a text channel's ephemeral
// fan-out. Advisory: no admission control.
func (c *Coordinator) WatchText(connID core.ConnID, channelID domain.ChannelID) {
	peer, ok := c.Registry.Lookup(connID)
	if !ok {
		return
	}
	c.Text.Watch(channelID, peer)
}

// Typing fans a typing indicator out to the channel's watchers,
// excluding the sender. The username comes from the handshake identity,
// never from the client payload.
func (c *Coordinator) Typing(connID core.ConnID, channelID domain.ChannelID, start bool) {
	peer, ok := c.Registry.Lookup(connID)
	if !ok {
		return
	}
	evt := EvtTypingStop
	if start {
		evt = EvtTypingStart
	}
	c.Text.Broadcast(channelID, connID, Encode(typingEvent{Type: evt, ChannelID: channelID, Username: peer.User.Username}))
}

// BroadcastToRoom fans an arbitrary event out to a text channel's
// watchers. This is the entry point for the external message-creation
// flow to relay newly persisted messages. Returns the delivery count.
func (c *Coordinator) BroadcastToRoom(channelID domain.ChannelID, event string, payload json.RawMessage) int {
	return c.Text.Broadcast(channelID, "", Encode(roomEvent{Type: event, ChannelID: channelID, Payload: payload}))
}

// OnDisconnect runs the cleanup cascade: voice room removal with
// peer-left, text unwatch, registry removal, durable offline write,
// presence broadcast. Safe to call any number of times; only the call
// that actually removes the registry entry cascades.
func (c *Coordinator) OnDisconnect(ctx context.Context, connID core.ConnID) {
	prevRoom, peer, existed := c.Registry.Unregister(connID)
	if !existed {
		return
	}
	if prevRoom != 0 {
		c.Voice.Leave(prevRoom, connID, Encode(peerLeftEvent{Type: EvtVoicePeerLeft, ConnectionID: connID}))
	}
	c.Text.DropConn(connID)
	c.Presence.Announce(ctx, peer.User.ID, false)
	log.Info().Str("module", "app.coordinator").Str("conn", string(connID)).Msg("disconnect cascade complete")
}
