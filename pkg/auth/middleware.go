package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PancyStudios/PancyChatGo/pkg/database"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

const userContextKey = "user"

// UserLookup loads the account a token belongs to
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// TokenFromRequest returns the token from the jwt cookie or a Bearer header
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Authenticate resolves the request's token to a user whose session is still current
func (m *Manager) Authenticate(ctx context.Context, r *http.Request, users UserLookup) (*models.User, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := m.Parse(token)
	if err != nil {
		return nil, err
	}

	user, err := users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user.SessionVersion != claims.SessionVersion {
		return nil, ErrSessionRevoked
	}
	return user, nil
}

// Middleware rejects requests without a valid, unrevoked session
func (m *Manager) Middleware(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.Authenticate(c.Request.Context(), c.Request, users)
		if err != nil {
			message := "Unauthorized - Invalid Token"
			switch {
			case TokenFromRequest(c.Request) == "":
				message = "Unauthorized - No Token Provided"
			case errors.Is(err, ErrSessionRevoked):
				message = "Unauthorized - Session ended"
			case errors.Is(err, database.ErrUserNotFound):
				message = "Unauthorized - User not found"
			case !errors.Is(err, ErrInvalidToken):
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": message})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// CurrentUser returns the user set by Middleware
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// RequireAdmin allows only users for whom isAdmin returns true. It must run after Middleware.
func RequireAdmin(isAdmin func(email string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !isAdmin(user.Email) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden - Admins only"})
			return
		}
		c.Next()
	}
}
