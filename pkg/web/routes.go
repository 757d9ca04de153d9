package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PancyStudios/PancyChatGo/pkg/config"
)

// DatabaseStatus reports the document store connection
type DatabaseStatus interface {
	GetStatus(ctx context.Context) (string, bool)
}

// BusStatus reports the MQTT connection
type BusStatus interface {
	IsConnected() bool
}

// OnlineLister lists the users currently connected
type OnlineLister interface {
	OnlineUsers(ctx context.Context) ([]string, error)
}

// BotStatus reports the operator bot gateway
type BotStatus interface {
	IsReady() bool
}

// StatusSources feed /api/status. Any of them may be nil.
type StatusSources struct {
	Database DatabaseStatus
	Bus      BusStatus
	Presence OnlineLister
	Bot      BotStatus
}

// SetupAPIRoutes sets up the health and status routes
func SetupAPIRoutes(s *Server, sources StatusSources) {
	api := s.Group("/api")
	{
		api.GET("/status", statusHandler(sources))
		api.GET("/health", healthHandler)
	}
}

// statusHandler reports each dependency
func statusHandler(sources StatusSources) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus, dbOnline := "disabled", false
		if sources.Database != nil {
			dbStatus, dbOnline = sources.Database.GetStatus(ctx)
		}

		busOnline := false
		if sources.Bus != nil {
			busOnline = sources.Bus.IsConnected()
		}

		online := gin.H{"isOnline": false}
		if sources.Presence != nil {
			if users, err := sources.Presence.OnlineUsers(ctx); err == nil {
				online = gin.H{"isOnline": true, "count": len(users)}
			}
		}

		bot := gin.H{"enabled": sources.Bot != nil, "isOnline": false}
		if sources.Bot != nil {
			bot["isOnline"] = sources.Bot.IsReady()
		}

		status := "ok"
		if !dbOnline {
			status = "degraded"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"version": config.Version,
			"database": gin.H{
				"status":   dbStatus,
				"isOnline": dbOnline,
			},
			"mqtt": gin.H{
				"isOnline": busOnline,
			},
			"presence": online,
			"bot":      bot,
		})
	}
}

// healthHandler returns a simple health check response
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "PancyChat Go is running",
	})
}
