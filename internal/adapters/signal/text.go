package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
)

type textPayload struct {
	Type      string `json:"type"`
	ChannelID int64  `json:"channelId"`
}

func (ctl *Controller) handleWatchText(connID core.ConnID, data []byte) {
	var p textPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID <= 0 {
		log.Debug().Str("module", "signal").Str("conn", string(connID)).Msg("bad watch payload")
		return
	}
	ctl.Coord.WatchText(connID, domain.ChannelID(p.ChannelID))
}

func (ctl *Controller) handleTyping(connID core.ConnID, data []byte, start bool) {
	var p textPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID <= 0 {
		log.Debug().Str("module", "signal").Str("conn", string(connID)).Msg("bad typing payload")
		return
	}
	ctl.Coord.Typing(connID, domain.ChannelID(p.ChannelID), start)
}
