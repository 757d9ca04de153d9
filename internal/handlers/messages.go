package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PancyStudios/PancyChatGo/internal/moderation"
	"github.com/PancyStudios/PancyChatGo/pkg/auth"
	"github.com/PancyStudios/PancyChatGo/pkg/database"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

// SidebarUsers lists every user except the caller
func (h *Handlers) SidebarUsers(c *gin.Context) {
	me := auth.CurrentUser(c)
	profiles, err := h.Users.ListProfiles(c.Request.Context(), me.ID)
	if err != nil {
		logger.Error("Listing users: "+err.Error(), "Messages")
		internalErr(c)
		return
	}
	if profiles == nil {
		profiles = []*models.Profile{}
	}
	c.JSON(http.StatusOK, profiles)
}

// Conversation returns the messages between the caller and :id, oldest first
func (h *Handlers) Conversation(c *gin.Context) {
	me := auth.CurrentUser(c)
	msgs, err := h.Conversations.Conversation(c.Request.Context(), me.ID, c.Param("id"))
	if err != nil {
		logger.Error("Loading conversation: "+err.Error(), "Messages")
		internalErr(c)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// SendMessage runs the attempt through the message gate
func (h *Handlers) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonErr(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	me := auth.CurrentUser(c)
	receiverID := c.Param("id")
	if _, err := h.Users.FindByID(c.Request.Context(), receiverID); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			jsonErr(c, http.StatusNotFound, "receiver_not_found", "Receiver not found")
			return
		}
		internalErr(c)
		return
	}

	msg, err := h.Gate.Send(c.Request.Context(), moderation.Attempt{
		SenderID:   me.ID,
		ReceiverID: receiverID,
		Text:       req.Text,
		Image:      req.Image,
	})
	if err != nil {
		h.writeSendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// sendFailure is the response for a rejected send attempt
type sendFailure struct {
	status      int
	code        string
	message     string
	endsSession bool
	extra       gin.H
}

// classifySendError maps a gate error to its response
func classifySendError(err error) sendFailure {
	var (
		blocked *moderation.BlockedError
		harmful *moderation.HarmfulContentError
		persist *moderation.SuspensionPersistError
		load    *moderation.StateLoadError
		deliver *moderation.DeliveryError
	)

	switch {
	case errors.Is(err, moderation.ErrEmptyContent):
		return sendFailure{status: http.StatusBadRequest, code: "empty_content",
			message: "Message cannot be empty."}

	case errors.As(err, &blocked):
		block := blocked.Block()
		if block.Reason == moderation.TemporarySuspension {
			return sendFailure{status: http.StatusForbidden, code: "suspended",
				message: block.Describe(), endsSession: true,
				extra: gin.H{"suspendedUntil": block.Until}}
		}
		return sendFailure{status: http.StatusForbidden, code: "banned",
			message: block.Describe(), endsSession: true}

	case errors.As(err, &harmful):
		return sendFailure{status: http.StatusUnprocessableEntity, code: "harmful_content",
			message: harmful.Tier.Message, endsSession: true,
			extra: gin.H{
				"flagCount":      harmful.State.FlagCount,
				"banned":         harmful.State.Banned,
				"suspendedUntil": harmful.State.SuspendedUntil,
			}}

	case errors.As(err, &persist):
		return sendFailure{status: http.StatusInternalServerError, code: "suspension_persist_failed",
			message: "Your message was rejected, but your account status could not be updated. Please contact support."}

	case errors.Is(err, moderation.ErrClassifierUnavailable):
		return sendFailure{status: http.StatusServiceUnavailable, code: "classifier_unavailable",
			message: "Your message could not be checked right now. Please try again."}

	case errors.Is(err, moderation.ErrClassifierMalformedResponse):
		return sendFailure{status: http.StatusBadGateway, code: "classifier_malformed_response",
			message: "The content checker returned an unexpected answer. Please try again."}

	case errors.As(err, &load):
		return sendFailure{status: http.StatusInternalServerError, code: "state_unavailable",
			message: "Your account status could not be read. Please try again."}

	case errors.As(err, &deliver):
		return sendFailure{status: http.StatusInternalServerError, code: "delivery_failed",
			message: "Your message could not be delivered. Please try again."}

	default:
		return sendFailure{status: http.StatusInternalServerError, code: "internal_error",
			message: "Internal Server Error"}
	}
}

func (h *Handlers) writeSendError(c *gin.Context, err error) {
	f := classifySendError(err)
	if f.status >= http.StatusInternalServerError {
		logger.Error(fmt.Sprintf("Send from %s failed: %v", auth.CurrentUser(c).ID, err), "Messages")
	}
	if f.endsSession {
		h.Auth.ClearCookie(c)
	}

	body := gin.H{"status": "error", "code": f.code, "message": f.message}
	for k, v := range f.extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(f.status, body)
}
