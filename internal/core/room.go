package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/metrics"
)

// Room is a threadsafe in-memory peer group for one channel. The same
// type backs voice rooms (strict membership) and text rooms (advisory
// watchers); the membership discipline lives in the tables that own it.
//
// All mutations and the notifications they trigger run under one mutex,
// so members observe joins and leaves for a given room in the order
// they were applied. Notification dispatch is a non-blocking enqueue
// onto each member's send queue; a slow client loses frames instead of
// stalling the room.
type Room struct {
	id      domain.ChannelID
	mu      sync.Mutex
	sealed  bool
	members map[ConnID]*Peer
}

func NewRoom(id domain.ChannelID) *Room {
	return &Room{id: id, members: make(map[ConnID]*Peer)}
}

func (r *Room) ID() domain.ChannelID { return r.id }

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) Members() []ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ConnID, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}

func (r *Room) Snapshot() []PeerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked("")
}

func (r *Room) snapshotLocked(except ConnID) []PeerInfo {
	out := make([]PeerInfo, 0, len(r.members))
	for id, p := range r.members {
		if id == except {
			continue
		}
		out = append(out, p.Info())
	}
	return out
}

// Add inserts p and fans announce out to the members that were already
// present, returning their snapshot so the joiner can start signaling
// with each. ok is false if the room was sealed after its last member
// left; the caller must fetch a fresh room and retry.
func (r *Room) Add(p *Peer, announce Frame) (peers []PeerInfo, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return nil, false
	}
	peers = r.snapshotLocked(p.ID)
	r.members[p.ID] = p
	if announce != nil {
		r.fanoutLocked(p.ID, announce)
	}
	log.Debug().Str("module", "core.room").Int64("channel", int64(r.id)).Str("conn", string(p.ID)).Msg("member added")
	return peers, true
}

// Remove drops the member and fans announce out to the rest. present
// reports whether the connection was a member; remaining is the member
// count afterwards so the owner can tear down an emptied room.
func (r *Room) Remove(id ConnID, announce Frame) (present bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, present = r.members[id]; !present {
		return false, len(r.members)
	}
	delete(r.members, id)
	if announce != nil {
		r.fanoutLocked(id, announce)
	}
	log.Debug().Str("module", "core.room").Int64("channel", int64(r.id)).Str("conn", string(id)).Msg("member removed")
	return true, len(r.members)
}

// Broadcast fans f out to every member except `except` (empty ConnID
// means everyone). Returns the number of successful enqueues.
func (r *Room) Broadcast(except ConnID, f Frame) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fanoutLocked(except, f)
}

func (r *Room) fanoutLocked(except ConnID, f Frame) int {
	sent := 0
	for id, p := range r.members {
		if id == except {
			continue
		}
		if err := p.Conn.TrySend(f); err != nil {
			metrics.EventsDropped.Inc()
			log.Debug().Str("module", "core.room").Int64("channel", int64(r.id)).Str("conn", string(id)).Msg("event dropped, slow client")
			continue
		}
		sent++
	}
	return sent
}

// SealIfEmpty marks an empty room dead so it can be deleted from its
// table. A sealed room rejects Add; the table retries with a fresh one.
func (r *Room) SealIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 {
		return false
	}
	r.sealed = true
	return true
}
