package auth

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all auth-related routes
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, middleware *Middleware) {
	auth := router.Group("/auth")
	auth.Use(middleware.RequireToken())
	{
		auth.GET("/me", handler.Me)
		auth.GET("/tokens", handler.ListTokens)
		auth.DELETE("/tokens/:id", handler.RevokeToken)
	}

	admin := router.Group("/admin")
	admin.Use(middleware.RequireToken(), middleware.RequireRole(RoleAdmin))
	{
		admin.GET("/users", handler.ListUsers)
		admin.POST("/users", handler.CreateUser)
		admin.POST("/users/:id/tokens", handler.CreateUserToken)
	}
}
