package app

import (
	"sync"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
)

// TextRooms is the advisory counterpart of RoomTable: connections watch
// text channels for ephemeral fan-out (typing indicators, new-message
// relay). No admission control and no at-most-one invariant; a
// connection may watch any number of channels. Watches are dropped
// wholesale on disconnect.
type TextRooms struct {
	mu      sync.RWMutex
	rooms   map[domain.ChannelID]*core.Room
	watched map[core.ConnID]map[domain.ChannelID]struct{}
}

func NewTextRooms() *TextRooms {
	return &TextRooms{
		rooms:   make(map[domain.ChannelID]*core.Room),
		watched: make(map[core.ConnID]map[domain.ChannelID]struct{}),
	}
}

func (t *TextRooms) Watch(id domain.ChannelID, p *core.Peer) {
	for {
		t.mu.Lock()
		room, ok := t.rooms[id]
		if !ok {
			room = core.NewRoom(id)
			t.rooms[id] = room
		}
		chs, ok := t.watched[p.ID]
		if !ok {
			chs = make(map[domain.ChannelID]struct{})
			t.watched[p.ID] = chs
		}
		chs[id] = struct{}{}
		t.mu.Unlock()
		if _, ok := room.Add(p, nil); ok {
			return
		}
	}
}

// Broadcast fans f out to the channel's watchers except the sender.
func (t *TextRooms) Broadcast(id domain.ChannelID, except core.ConnID, f core.Frame) int {
	t.mu.RLock()
	room, ok := t.rooms[id]
	t.mu.RUnlock()
	if !ok {
		return 0
	}
	return room.Broadcast(except, f)
}

// DropConn removes the connection from every room it watches. Called
// from the disconnect cascade.
func (t *TextRooms) DropConn(conn core.ConnID) {
	t.mu.Lock()
	chs := t.watched[conn]
	delete(t.watched, conn)
	rooms := make([]*core.Room, 0, len(chs))
	ids := make([]domain.ChannelID, 0, len(chs))
	for id := range chs {
		if room, ok := t.rooms[id]; ok {
			rooms = append(rooms, room)
			ids = append(ids, id)
		}
	}
	t.mu.Unlock()

	for i, room := range rooms {
		if _, remaining := room.Remove(conn, nil); remaining == 0 {
			t.deleteIfEmpty(ids[i])
		}
	}
}

func (t *TextRooms) WatcherCount(id domain.ChannelID) int {
	t.mu.RLock()
	room, ok := t.rooms[id]
	t.mu.RUnlock()
	if !ok {
		return 0
	}
	return room.MemberCount()
}

func (t *TextRooms) deleteIfEmpty(id domain.ChannelID) {
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
