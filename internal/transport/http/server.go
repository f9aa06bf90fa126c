package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"societygate/internal/auth"
	"societygate/internal/config"
	"societygate/internal/core"
	"societygate/internal/store"
)

// NewServer builds the HTTP server: health probe, REST chat surface, and the
// WebSocket gateway endpoint.
func NewServer(gateway *core.Gateway, verifier auth.Verifier, st store.MessageStore, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware(logger))

	engine.GET("/health", healthHandler)
	engine.GET("/ws", gin.WrapH(NewWSHandler(gateway, verifier, logger)))

	chat := NewChatHandlers(st, logger)
	api := engine.Group("/api", AuthMiddleware(verifier, logger))
	api.GET("/chat/messages", chat.ListMessages)
	api.GET("/chat/messages/:id", chat.GetMessage)
	api.DELETE("/chat/messages/:id", chat.DeleteMessage)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
