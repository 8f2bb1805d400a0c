package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/voxhall/voxhall/internal/collab"
	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
)

// fakeConn collects frames a peer would have received.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("queue full")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

// recvEvent is a union of every outbound payload, for decoding in tests.
type recvEvent struct {
	Type         string          `json:"type"`
	ChannelID    int64           `json:"channelId"`
	ConnectionID string          `json:"connectionId"`
	From         string          `json:"from"`
	UserID       int64           `json:"userId"`
	Online       bool            `json:"online"`
	Username     string          `json:"username"`
	Message      string          `json:"message"`
	Data         json.RawMessage `json:"data"`
	Payload      json.RawMessage `json:"payload"`
	Peers        []core.PeerInfo `json:"peers"`
}

func (c *fakeConn) events(t *testing.T) []recvEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]recvEvent, 0, len(c.frames))
	for _, f := range c.frames {
		var e recvEvent
		if err := json.Unmarshal(f, &e); err != nil {
			t.Fatalf("undecodable frame %q: %v", f, err)
		}
		out = append(out, e)
	}
	return out
}

func (c *fakeConn) eventsOf(t *testing.T, typ string) []recvEvent {
	t.Helper()
	var out []recvEvent
	for _, e := range c.events(t) {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// fakeStore implements the membership and presence collaborators.
type fakeStore struct {
	mu         sync.Mutex
	channels   map[domain.ChannelID]domain.Channel
	members    map[domain.ServerID]map[domain.UserID]bool
	online     map[domain.UserID]bool
	channelErr error
	memberErr  error
	onlineErr  error

	// channelHook runs at the top of GetChannel, outside the store
	// lock, so tests can stall an authorization mid-flight.
	channelHook func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		channels: make(map[domain.ChannelID]domain.Channel),
		members:  make(map[domain.ServerID]map[domain.UserID]bool),
		online:   make(map[domain.UserID]bool),
	}
}

func (s *fakeStore) addVoiceChannel(id domain.ChannelID, serverID domain.ServerID) {
	s.channels[id] = domain.Channel{ID: id, Type: domain.ChannelVoice, ServerID: serverID}
}

func (s *fakeStore) addMember(serverID domain.ServerID, userID domain.UserID) {
	if s.members[serverID] == nil {
		s.members[serverID] = make(map[domain.UserID]bool)
	}
	s.members[serverID][userID] = true
}

func (s *fakeStore) GetChannel(_ context.Context, id domain.ChannelID) (domain.Channel, error) {
	if s.channelHook != nil {
		s.channelHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channelErr != nil {
		return domain.Channel{}, s.channelErr
	}
	ch, ok := s.channels[id]
	if !ok {
		return domain.Channel{}, collab.ErrNotFound
	}
	return ch, nil
}

func (s *fakeStore) IsMember(_ context.Context, serverID domain.ServerID, userID domain.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.memberErr != nil {
		return false, s.memberErr
	}
	return s.members[serverID][userID], nil
}

func (s *fakeStore) SetOnline(_ context.Context, userID domain.UserID, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onlineErr != nil {
		return s.onlineErr
	}
	s.online[userID] = online
	return nil
}

func (s *fakeStore) isOnline(userID domain.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

func newTestCoordinator(store *fakeStore) *Coordinator {
	reg := NewRegistry()
	gate := NewGate(store, 0)
	return NewCoordinator(reg, gate, NewPresence(store, reg))
}

// connect registers a peer the way the transport adapter would.
func connect(c *Coordinator, id core.ConnID, userID domain.UserID) *fakeConn {
	conn := &fakeConn{}
	c.OnConnect(context.Background(), &core.Peer{
		ID:   id,
		User: domain.User{ID: userID, Username: "user-" + string(id)},
		Conn: conn,
	})
	return conn
}
