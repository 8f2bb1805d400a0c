package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/app"
	"github.com/voxhall/voxhall/internal/core"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn, cleanup func()) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, f); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, connID core.ConnID, c *wsConn, cleanup func()) {
	defer cleanup()

	// Dead transports must surface as read errors so the disconnect
	// cascade always fires: limit reads and require pongs.
	pongWait := ctl.pingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("readPump closing")
				return
			}
			ctl.dispatch(ctx, connID, c, data)
		}
	}
}

func (ctl *Controller) dispatch(ctx context.Context, connID core.ConnID, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("bad json")
		return
	}

	switch env.Type {
	case app.EvtJoinVoice:
		ctl.handleJoinVoice(ctx, connID, c, data)
	case app.EvtLeaveVoice:
		ctl.Coord.LeaveVoice(connID)
	case app.EvtSignal:
		ctl.handleRelay(connID, data)
	case app.EvtWatchTextRoom:
		ctl.handleWatchText(connID, data)
	case app.EvtTypingStart:
		ctl.handleTyping(connID, data, true)
	case app.EvtTypingStop:
		ctl.handleTyping(connID, data, false)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(core.Frame(b))
}
