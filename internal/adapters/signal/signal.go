// Package signal is the WebSocket transport adapter: it authenticates
// handshakes, upgrades connections, pumps frames, and translates wire
// events into coordinator calls.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/app"
	"github.com/voxhall/voxhall/internal/collab"
	"github.com/voxhall/voxhall/internal/config"
	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/metrics"
)

// CookieName carries the auth token issued by the external auth service.
const CookieName = "vh_auth"

var ErrBackpressure = errors.New("backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Coord    *app.Coordinator
	Verifier collab.CredentialVerifier

	readLimit    int64
	pingPeriod   time.Duration
	writeTimeout time.Duration
	sendBuffer   int
}

func NewController(coord *app.Coordinator, verifier collab.CredentialVerifier, cfg *config.Config) *Controller {
	return &Controller{
		Coord:        coord,
		Verifier:     verifier,
		readLimit:    cfg.ReadLimit,
		pingPeriod:   cfg.PingPeriod,
		writeTimeout: cfg.WriteTimeout,
		sendBuffer:   cfg.SendBuffer,
	}
}

// wsConn wraps *websocket.Conn with the buffered non-blocking send
// queue rooms fan out into. It implements core.SignalConnection.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleWS authenticates the handshake and, on success, upgrades and
// starts the connection lifecycle. Auth failure rejects with 401; the
// connection is never registered.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	token, _ := c.Cookie(CookieName)
	user, err := ctl.Verifier.Verify(c.Request.Context(), token)
	if err != nil {
		metrics.AuthFailures.Inc()
		log.Info().Err(err).Str("module", "signal").Msg("handshake rejected")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	connID := core.ConnID(uuid.NewString())
	conn := &wsConn{conn: ws, send: make(chan core.Frame, ctl.sendBuffer)}
	peer := &core.Peer{ID: connID, User: user, Conn: conn}
	log.Info().Str("module", "signal").Str("conn", string(connID)).Int64("user", int64(user.ID)).Msg("new WS connection")

	ctl.Coord.OnConnect(c.Request.Context(), peer)

	connCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	// Cleanup must run exactly once no matter which pump dies first or
	// how many times the transport signals closure.
	cleanup := func() {
		once.Do(func() {
			cancel()
			conn.Close()
			ctl.Coord.OnDisconnect(context.Background(), connID)
		})
	}

	go ctl.writePump(connCtx, conn, cleanup)
	go ctl.readPump(connCtx, connID, conn, cleanup)
}
