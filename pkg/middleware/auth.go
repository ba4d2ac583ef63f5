package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/jwt"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/response"
)

const (
	UserIDKey      = "user_id"
	UsernameKey    = "username"
	DisplayNameKey = "display_name"
	RoleKey        = "role"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

// TokenValidator validates access tokens. *jwt.Manager satisfies it.
type TokenValidator interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware validates bearer tokens on protected routes.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth returns a Gin middleware that validates JWT tokens.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader(AuthHeaderKey))
		if !ok {
			response.Unauthorized(c, "missing or malformed authorization header")
			c.Abort()
			return
		}

		claims, err := m.validator.ValidateAccessToken(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				msg = "token has expired"
			}
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Set(DisplayNameKey, claims.DisplayName)
		c.Set(RoleKey, claims.Role)
		c.Request = c.Request.WithContext(log.WithUser(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	return token, token != ""
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
