package app

import (
	"sync"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/metrics"
)

// RoomTable maps voice channels to their live rooms. Rooms are created
// lazily on first join and deleted once their last member leaves.
//
// Lock order is table then room, never the reverse. The at-most-one-room
// invariant is enforced by the Coordinator, which removes a connection
// from its previous room before calling Join here.
type RoomTable struct {
	mu    sync.RWMutex
	rooms map[domain.ChannelID]*core.Room
}

func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[domain.ChannelID]*core.Room)}
}

func (t *RoomTable) getOrCreate(id domain.ChannelID) *core.Room {
	t.mu.RLock()
	room, ok := t.rooms[id]
	t.mu.RUnlock()
	if ok {
		return room
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if room, ok = t.rooms[id]; ok {
		return room
	}
	room = core.NewRoom(id)
	t.rooms[id] = room
	return room
}

func (t *RoomTable) Get(id domain.ChannelID) (*core.Room, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	room, ok := t.rooms[id]
	return room, ok
}

// Join adds p to the channel's room, announcing `announce` to the
// members already present, and returns their snapshot. Retries when it
// races a room being sealed empty.
func (t *RoomTable) Join(id domain.ChannelID, p *core.Peer, announce core.Frame) []core.PeerInfo {
	for {
		room := t.getOrCreate(id)
		if peers, ok := room.Add(p, announce); ok {
			metrics.VoiceRoomMembers.Inc()
			return peers
		}
	}
}

// Leave removes the connection from the channel's room, announcing to
// the rest, and tears the room down if it emptied. Reports whether the
// connection was a member.
func (t *RoomTable) Leave(id domain.ChannelID, conn core.ConnID, announce core.Frame) bool {
	room, ok := t.Get(id)
	if !ok {
		return false
	}
	present, remaining := room.Remove(conn, announce)
	if present {
		metrics.VoiceRoomMembers.Dec()
	}
	if remaining == 0 {
		t.deleteIfEmpty(id)
	}
	return present
}

func (t *RoomTable) MembersOf(id domain.ChannelID) []core.ConnID {
	room, ok := t.Get(id)
	if !ok {
		return nil
	}
	return room.Members()
}

func (t *RoomTable) deleteIfEmpty(id domain.ChannelID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room, ok := t.rooms[id]
	if !ok {
		return
	}
	if room.SealIfEmpty() {
		delete(t.rooms, id)
	}
}

func (t *RoomTable) RoomCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}
