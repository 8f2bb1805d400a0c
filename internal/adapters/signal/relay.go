package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/core"
)

// handleRelay forwards an opaque signaling payload. No error ever goes
// back to the sender: from its side a malformed payload and a payload
// to a peer that just vanished are indistinguishable, and peer-left is
// the recovery signal for both.
func (ctl *Controller) handleRelay(connID core.ConnID, data []byte) {
	var p struct {
		Type string          `json:"type"`
		To   string          `json:"to"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("bad signal payload")
		return
	}
	ctl.Coord.Relay(connID, core.ConnID(p.To), p.Data)
}
