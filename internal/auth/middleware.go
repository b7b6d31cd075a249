package auth

import (
	"errors"
	"net/http"
	"strings"

	"canteen/internal/v0/common"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	// Context keys
	ContextKeyUser   = "auth_user"
	ContextKeyToken  = "auth_token"
	ContextKeyUserID = "auth_user_id"

	// Headers
	HeaderAuthorization = "Authorization"
)

// Middleware provides authentication and authorization middleware
type Middleware struct {
	tokenStore *TokenStore
	logger     log.FieldLogger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(tokenStore *TokenStore, logger log.FieldLogger) *Middleware {
	return &Middleware{tokenStore: tokenStore, logger: logger}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, common.CreateAPIResponse(nil, []string{msg}, c.GetString(common.ContextKeyRequestID)))
}

// RequireToken returns a middleware that validates bearer tokens
func (m *Middleware) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Extract Authorization header
		authHeader := c.GetHeader(HeaderAuthorization)
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		// 2. Parse Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abort(c, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		// 3. Validate token
		validated, err := m.tokenStore.ValidateToken(c.Request.Context(), parts[1])
		switch {
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenRevoked), errors.Is(err, ErrTokenExpired):
			abort(c, http.StatusUnauthorized, err.Error())
			return
		case err != nil:
			m.logger.WithError(err).Error("token validation failed")
			abort(c, http.StatusInternalServerError, "failed to validate token")
			return
		}

		// 4. Set context values
		c.Set(ContextKeyUser, validated.User)
		c.Set(ContextKeyToken, validated.Token)
		c.Set(ContextKeyUserID, validated.User.ID)

		c.Next()
	}
}

// RequireRole returns a middleware that lets through users holding one of
// roles. Admins pass every role check.
func (m *Middleware) RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUserFromContext(c)
		if user == nil {
			abort(c, http.StatusUnauthorized, "not authenticated")
			return
		}
		if user.Role == RoleAdmin {
			c.Next()
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "insufficient role")
	}
}

// GetUserFromContext retrieves the authenticated user from the context
func GetUserFromContext(c *gin.Context) *User {
	userVal, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	user, ok := userVal.(*User)
	if !ok {
		return nil
	}
	return user
}

// GetTokenFromContext retrieves the validated token from the context
func GetTokenFromContext(c *gin.Context) *Token {
	tokenVal, exists := c.Get(ContextKeyToken)
	if !exists {
		return nil
	}
	token, ok := tokenVal.(*Token)
	if !ok {
		return nil
	}
	return token
}
