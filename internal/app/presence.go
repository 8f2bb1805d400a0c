package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/collab"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/metrics"
)

// Presence announces online/offline transitions. The durable flag write
// is attempted first, but the broadcast proceeds regardless: durable
// persistence and live notification are independently best-effort.
type Presence struct {
	Store    collab.PresenceStore
	Registry *Registry
}

func NewPresence(store collab.PresenceStore, reg *Registry) *Presence {
	return &Presence{Store: store, Registry: reg}
}

func (p *Presence) Announce(ctx context.Context, userID domain.UserID, online bool) {
	if err := p.Store.SetOnline(ctx, userID, online); err != nil {
		metrics.PresenceWriteFailures.Inc()
		log.Error().Err(err).Str("module", "app.presence").Int64("user", int64(userID)).Bool("online", online).Msg("durable presence write failed")
	}

	f := Encode(presenceEvent{Type: EvtPresenceUpdate, UserID: userID, Online: online})
	if f == nil {
		return
	}
	for _, peer := range p.Registry.Peers() {
		if err := peer.Conn.TrySend(f); err != nil {
			metrics.EventsDropped.Inc()
		}
	}
}
