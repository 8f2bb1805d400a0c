package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/app"
	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
)

func (ctl *Controller) handleJoinVoice(
	ctx context.Context,
	connID core.ConnID,
	conn *wsConn,
	data []byte,
) {
	var p struct {
		Type      string `json:"type"`
		ChannelID int64  `json:"channelId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID <= 0 {
		ctl.sendJSON(conn, app.NewVoiceError("Invalid channel"))
		return
	}

	log.Info().Str("module", "signal").Str("conn", string(connID)).Int64("channel", p.ChannelID).Msg("join voice")
	if err := ctl.Coord.JoinVoice(ctx, connID, domain.ChannelID(p.ChannelID)); err != nil {
		ctl.sendJSON(conn, app.NewVoiceError(err.Error()))
	}
}
