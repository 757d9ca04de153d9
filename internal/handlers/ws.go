package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/PancyStudios/PancyChatGo/pkg/auth"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
)

// Socket upgrades to a websocket for the authenticated user. The upgrader
// writes its own error response.
func (h *Handlers) Socket(c *gin.Context) {
	me := auth.CurrentUser(c)
	if err := h.Sockets.ServeWS(c.Writer, c.Request, me.ID); err != nil {
		logger.Debug(fmt.Sprintf("Websocket upgrade for %s failed: %v", me.ID, err), "Realtime")
	}
}
