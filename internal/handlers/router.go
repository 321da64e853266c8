package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/classroom-signaling/config"
	"github.com/mossy-p/classroom-signaling/internal/broker"
	"github.com/mossy-p/classroom-signaling/internal/middleware"
)

// NewRouter wires every HTTP route onto a gin engine.
func NewRouter(cfg *config.Config, b *broker.Broker, log *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Environment != "test" {
		router.Use(gin.Logger())
	}

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/session", GetSession(b))
		apiGroup.POST("/auth/login", Login(cfg.JWTSecret, cfg.Admin, log))
		apiGroup.GET("/roster", middleware.JWTAuth(cfg.JWTSecret), GetRoster(b))
	}

	router.GET("/ws", HandleSignaling(b, cfg.Signaling, log))

	return router
}
