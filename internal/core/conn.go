// Package core holds the connection and room abstractions shared by the
// voice and text paths. It owns membership sets but never transport
// resources; adapters own and close their connections.
package core

import "github.com/voxhall/voxhall/internal/domain"

// Frame is an encoded event ready for the wire.
type Frame []byte

// ConnID identifies one live transport session. Assigned at handshake,
// never reused for the process lifetime.
type ConnID string

// SignalConnection abstracts the outbound side of a client transport.
// TrySend must never block: it enqueues or fails immediately.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Peer binds a connection identity to its transport endpoint.
// This is what rooms store and fan out to.
type Peer struct {
	ID   ConnID
	User domain.User
	Conn SignalConnection
}

// PeerInfo is a read-only view for event payloads (no transport fields).
type PeerInfo struct {
	ConnectionID ConnID      `json:"connectionId"`
	User         domain.User `json:"user"`
}

func (p *Peer) Info() PeerInfo {
	return PeerInfo{ConnectionID: p.ID, User: p.User}
}

// Initiator reports which of two peers opens the WebRTC offer once they
// discover each other. Both endpoints compute this independently from
// the connection ids alone: the lexicographically smaller id waits, the
// larger one initiates. The server never mediates the tie-break; this
// function is the reference for client SDKs and pins the rule the
// deployed clients implement. Changing it breaks them.
func Initiator(a, b ConnID) ConnID {
	if a > b {
		return a
	}
	return b
}
