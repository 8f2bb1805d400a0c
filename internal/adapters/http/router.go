package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/adapters/signal"
	"github.com/voxhall/voxhall/internal/app"
	"github.com/voxhall/voxhall/internal/config"
	"github.com/voxhall/voxhall/internal/domain"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		ctl.HandleWS(ctx, c)
	})

	// The message-creation flow in the CRUD service calls this to fan a
	// freshly persisted event out to the channel's live watchers.
	internal := r.Group("/internal", internalSecretMiddleware(cfg.InternalSecret))
	internal.POST("/rooms/:channelId/broadcast", func(c *gin.Context) {
		handleBroadcast(c, ctl.Coord)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

func internalSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "internal API disabled"})
			return
		}
		got := c.GetHeader("X-Internal-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

type broadcastRequest struct {
	Event   string          `json:"event" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

func handleBroadcast(c *gin.Context, coord *app.Coordinator) {
	channelID, err := strconv.ParseInt(c.Param("channelId"), 10, 64)
	if err != nil || channelID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing event"})
		return
	}
	delivered := coord.BroadcastToRoom(domain.ChannelID(channelID), req.Event, req.Payload)
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}
