// Package handlers exposes accounts, messaging, administration and the
// realtime socket over HTTP.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PancyStudios/PancyChatGo/internal/moderation"
	"github.com/PancyStudios/PancyChatGo/pkg/auth"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

// Users is the account store
type Users interface {
	Create(ctx context.Context, fullName, email, passwordHash string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListProfiles(ctx context.Context, exceptID string) ([]*models.Profile, error)
	UpdateProfilePic(ctx context.Context, id, url string) (*models.Profile, error)
}

// Conversations reads stored messages
type Conversations interface {
	Conversation(ctx context.Context, userA, userB string) ([]models.Message, error)
}

// Sender runs a send attempt through moderation
type Sender interface {
	Send(ctx context.Context, a moderation.Attempt) (*models.Message, error)
}

// Moderator applies administrative actions
type Moderator interface {
	Ban(ctx context.Context, act moderation.Action) (models.ModerationState, error)
	Unban(ctx context.Context, act moderation.Action) (models.ModerationState, error)
	Suspend(ctx context.Context, act moderation.Action) (models.ModerationState, error)
	Reset(ctx context.Context, act moderation.Action) (models.ModerationState, error)
}

// AuditLog lists a user's moderation history
type AuditLog interface {
	Events(ctx context.Context, userID string, limit int64) ([]models.ModerationEvent, error)
}

// SocketServer attaches an upgraded connection to a user
type SocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

// Deps are the collaborators of the HTTP handlers
type Deps struct {
	Auth          *auth.Manager
	Users         Users
	Conversations Conversations
	Gate          Sender
	Admin         Moderator
	Audit         AuditLog
	Sockets       SocketServer
	IsAdmin       func(email string) bool
	Now           func() time.Time
}

// Handlers holds the route handlers
type Handlers struct {
	Deps
}

func New(deps Deps) *Handlers {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IsAdmin == nil {
		deps.IsAdmin = func(string) bool { return false }
	}
	return &Handlers{Deps: deps}
}

// Router is the subset of the web server the handlers register on
type Router interface {
	Group(path string, handlers ...gin.HandlerFunc) *gin.RouterGroup
	GET(path string, handlers ...gin.HandlerFunc)
}

// RegisterAll mounts every route
func (h *Handlers) RegisterAll(r Router) {
	protect := h.Auth.Middleware(h.Users)

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/check", protect, h.Check)
		authGroup.PUT("/update-profile", protect, h.UpdateProfile)
		authGroup.GET("/user/:id", protect, h.UserStatus)
	}

	messages := r.Group("/api/messages", protect)
	{
		messages.GET("/users", h.SidebarUsers)
		messages.GET("/:id", h.Conversation)
		messages.POST("/send/:id", h.SendMessage)
	}

	admin := r.Group("/api/admin", protect, auth.RequireAdmin(h.IsAdmin))
	{
		admin.POST("/users/:id/ban", h.AdminBan)
		admin.POST("/users/:id/unban", h.AdminUnban)
		admin.POST("/users/:id/suspend", h.AdminSuspend)
		admin.POST("/users/:id/reset", h.AdminReset)
		admin.GET("/users/:id/events", h.AdminEvents)
	}

	r.GET("/ws", protect, h.Socket)
}

// jsonErr writes the error body every endpoint shares and aborts the chain
func jsonErr(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"status":  "error",
		"code":    code,
		"message": message,
	})
}

func internalErr(c *gin.Context) {
	jsonErr(c, http.StatusInternalServerError, "internal_error", "Internal Server Error")
}
