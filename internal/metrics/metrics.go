// Package metrics exposes the coordinator's Prometheus collectors.
//
// The signaling protocol surfaces almost no errors to clients (dropped
// relays and malformed payloads are invisible by design), so these
// counters are the only way to observe that traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Drop reasons for SignalsDropped.
	ReasonMalformed    = "malformed"
	ReasonUnreachable  = "unreachable"
	ReasonBackpressure = "backpressure"
)

var (
	// ConnectionsActive tracks currently registered connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxhall_connections_active",
		Help: "Number of live registered client connections.",
	})

	// SignalsRelayed counts peer-to-peer signaling payloads delivered.
	SignalsRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxhall_signals_relayed_total",
		Help: "Signaling payloads forwarded to their target connection.",
	})

	// SignalsDropped counts signaling payloads dropped without a
	// protocol-level error. Labels: reason (malformed|unreachable|backpressure).
	SignalsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxhall_signals_dropped_total",
		Help: "Signaling payloads silently dropped, by reason.",
	}, []string{"reason"})

	// EventsDropped counts room/presence event frames lost to slow clients.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxhall_events_dropped_total",
		Help: "Room and presence event frames dropped on full send queues.",
	})

	// VoiceRoomMembers tracks voice room occupancy across all rooms.
	VoiceRoomMembers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxhall_voice_room_members",
		Help: "Total memberships across all live voice rooms.",
	})

	// PresenceWriteFailures counts failed durable online-flag writes.
	PresenceWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxhall_presence_write_failures_total",
		Help: "Durable presence writes that failed and were skipped.",
	})

	// AuthFailures counts rejected handshakes.
	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxhall_auth_failures_total",
		Help: "WebSocket handshakes rejected by credential verification.",
	})
)
