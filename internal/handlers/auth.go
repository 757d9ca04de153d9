package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PancyStudios/PancyChatGo/internal/moderation"
	"github.com/PancyStudios/PancyChatGo/pkg/auth"
	"github.com/PancyStudios/PancyChatGo/pkg/database"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

func validationErr(c *gin.Context, errs map[string]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"status":  "error",
		"code":    "invalid_request",
		"message": "All fields are required",
		"errors":  errs,
	})
}

func (h *Handlers) startSession(c *gin.Context, user *models.User) bool {
	token, _, err := h.Auth.Issue(user.ID, user.SessionVersion)
	if err != nil {
		logger.Error(fmt.Sprintf("Issuing token for %s: %v", user.ID, err), "Auth")
		internalErr(c)
		return false
	}
	h.Auth.SetCookie(c, token)
	return true
}

// Signup creates an account and logs it in
func (h *Handlers) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonErr(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = database.NormalizeEmail(req.Email)

	if errs := req.Validate(); len(errs) > 0 {
		validationErr(c, errs)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("Hashing password: "+err.Error(), "Auth")
		internalErr(c)
		return
	}

	user, err := h.Users.Create(c.Request.Context(), req.FullName, req.Email, hash)
	if errors.Is(err, database.ErrEmailExists) {
		jsonErr(c, http.StatusBadRequest, "email_exists", "Email already exists")
		return
	}
	if err != nil {
		logger.Error("Creating user: "+err.Error(), "Auth")
		internalErr(c)
		return
	}

	if !h.startSession(c, user) {
		return
	}
	logger.Info(fmt.Sprintf("New account %s", user.ID), "Auth")
	c.JSON(http.StatusCreated, user.Profile)
}

// Login checks credentials and refuses banned or suspended accounts
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonErr(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationErr(c, errs)
		return
	}

	user, err := h.Users.FindByEmail(c.Request.Context(), database.NormalizeEmail(req.Email))
	switch {
	case errors.Is(err, database.ErrUserNotFound):
		jsonErr(c, http.StatusBadRequest, "invalid_credentials", "Invalid credentials")
		return
	case err != nil:
		logger.Error("Login lookup: "+err.Error(), "Auth")
		internalErr(c)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		jsonErr(c, http.StatusBadRequest, "invalid_credentials", "Invalid credentials")
		return
	}

	block := moderation.EvaluateBlock(user.ModerationState, h.Now())
	switch block.Reason {
	case moderation.PermanentBan:
		jsonErr(c, http.StatusForbidden, "banned", "You are permanently banned from logging in!")
		return
	case moderation.TemporarySuspension:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"status":         "error",
			"code":           "suspended",
			"message":        fmt.Sprintf("You are suspended until %s!", block.Until.UTC().Format(time.RFC1123)),
			"suspendedUntil": block.Until,
		})
		return
	}

	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, user.Profile)
}

// Logout clears the session cookie
func (h *Handlers) Logout(c *gin.Context) {
	h.Auth.ClearCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Check returns the authenticated user
func (h *Handlers) Check(c *gin.Context) {
	c.JSON(http.StatusOK, auth.CurrentUser(c))
}

// UpdateProfile stores a new profile picture URL
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProfilePic) == "" {
		jsonErr(c, http.StatusBadRequest, "invalid_request", "Profile pic is required")
		return
	}

	me := auth.CurrentUser(c)
	profile, err := h.Users.UpdateProfilePic(c.Request.Context(), me.ID, strings.TrimSpace(req.ProfilePic))
	if err != nil {
		logger.Error(fmt.Sprintf("Updating profile of %s: %v", me.ID, err), "Auth")
		internalErr(c)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UserStatus returns a user's moderation status
func (h *Handlers) UserStatus(c *gin.Context) {
	user, err := h.Users.FindByID(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, database.ErrUserNotFound):
		jsonErr(c, http.StatusNotFound, "user_not_found", "User not found")
		return
	case err != nil:
		internalErr(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"flagCount":      user.FlagCount,
		"banned":         user.Banned,
		"suspendedUntil": user.SuspendedUntil,
	})
}
