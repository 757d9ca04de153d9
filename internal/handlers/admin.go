package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PancyStudios/PancyChatGo/internal/moderation"
	"github.com/PancyStudios/PancyChatGo/pkg/auth"
	"github.com/PancyStudios/PancyChatGo/pkg/database"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

type adminRequest struct {
	Reason  string `json:"reason"`
	Minutes int    `json:"minutes"`
}

type adminAction func(ctx context.Context, act moderation.Action) (models.ModerationState, error)

func (h *Handlers) AdminBan(c *gin.Context)     { h.runAdmin(c, h.Admin.Ban, false) }
func (h *Handlers) AdminUnban(c *gin.Context)   { h.runAdmin(c, h.Admin.Unban, false) }
func (h *Handlers) AdminSuspend(c *gin.Context) { h.runAdmin(c, h.Admin.Suspend, true) }
func (h *Handlers) AdminReset(c *gin.Context)   { h.runAdmin(c, h.Admin.Reset, false) }

func (h *Handlers) runAdmin(c *gin.Context, action adminAction, needsMinutes bool) {
	var req adminRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			jsonErr(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
			return
		}
	}

	act := moderation.Action{
		UserID: c.Param("id"),
		Actor:  auth.CurrentUser(c).ID,
		Reason: strings.TrimSpace(req.Reason),
	}
	if needsMinutes {
		if req.Minutes <= 0 {
			jsonErr(c, http.StatusBadRequest, "invalid_duration", "minutes must be a positive number")
			return
		}
		act.Duration = time.Duration(req.Minutes) * time.Minute
	}

	state, err := action(c.Request.Context(), act)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, state)
	case errors.Is(err, database.ErrUserNotFound):
		jsonErr(c, http.StatusNotFound, "user_not_found", "User not found")
	case errors.Is(err, moderation.ErrInvalidDuration):
		jsonErr(c, http.StatusBadRequest, "invalid_duration", err.Error())
	case errors.Is(err, moderation.ErrAlreadyBanned):
		jsonErr(c, http.StatusConflict, "already_banned", "User is permanently banned")
	default:
		logger.Error(fmt.Sprintf("Admin action on %s failed: %v", act.UserID, err), "Admin")
		internalErr(c)
	}
}

// AdminEvents lists a user's moderation events, newest first
func (h *Handlers) AdminEvents(c *gin.Context) {
	limit := int64(defaultEventLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			jsonErr(c, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.Audit.Events(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		logger.Error("Loading moderation events: "+err.Error(), "Admin")
		internalErr(c)
		return
	}
	if events == nil {
		events = []models.ModerationEvent{}
	}
	c.JSON(http.StatusOK, events)
}
