package relay

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/config"
)

// ClientTokenMiddleware assigns a stable per-client token cookie. The
// token doubles as the user identity on the relay.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("QuarrelSessions", store))
	r.Use(ClientTokenMiddleware())

	api := r.Group("/api")
	api.GET("/ws/voice", func(c *gin.Context) {
		log.Info().Str("module", "relay").Str("sid", c.GetString("client_token")).Msg("ws voice endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}
