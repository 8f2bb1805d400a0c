package app

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/metrics"
)

// ErrDuplicateConnection means a connection id was registered twice.
// Transport ids are unique, so this is a logic error; the registry
// recovers by replacing the stale entry.
var ErrDuplicateConnection = errors.New("duplicate connection id")

type regEntry struct {
	peer *core.Peer
	// voiceRoom is the channel the connection is currently joined to,
	// zero when idle. At most one at a time.
	voiceRoom domain.ChannelID
}

// Registry tracks every live connection and its current voice room.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnID]*regEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.ConnID]*regEntry)}
}

func (r *Registry) Register(p *core.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, stale := r.conns[p.ID]
	r.conns[p.ID] = &regEntry{peer: p}
	if stale {
		log.Error().Str("module", "app.registry").Str("conn", string(p.ID)).Msg("duplicate connection id, replaced stale entry")
		return ErrDuplicateConnection
	}
	metrics.ConnectionsActive.Inc()
	log.Info().Str("module", "app.registry").Str("conn", string(p.ID)).Int64("user", int64(p.User.ID)).Msg("connection registered")
	return nil
}

// Unregister removes the connection and returns its last known voice
// room so the caller can cascade cleanup. Idempotent: a second call for
// the same id reports existed=false and the caller must not cascade.
func (r *Registry) Unregister(id core.ConnID) (prevRoom domain.ChannelID, peer *core.Peer, existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return 0, nil, false
	}
	delete(r.conns, id)
	metrics.ConnectionsActive.Dec()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection unregistered")
	return e.voiceRoom, e.peer, true
}

func (r *Registry) Lookup(id core.ConnID) (*core.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.peer, true
	}
	return nil, false
}

// VoiceRoomOf returns the connection's current voice room, ok=false when
// idle or unknown.
func (r *Registry) VoiceRoomOf(id core.ConnID) (domain.ChannelID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.voiceRoom == 0 {
		return 0, false
	}
	return e.voiceRoom, true
}

func (r *Registry) SetVoiceRoom(id core.ConnID, ch domain.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	e.voiceRoom = ch
	return true
}

func (r *Registry) ClearVoiceRoom(id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.voiceRoom = 0
	}
}

// Peers snapshots every live connection, for presence fan-out.
func (r *Registry) Peers() []*core.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Peer, 0, len(r.conns))
	for _, e := range r.conns {
		out = append(out, e.peer)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
