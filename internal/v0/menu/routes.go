package menu

import (
	"canteen/internal/auth"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(rg *gin.RouterGroup, h *Handler, authMiddleware *auth.Middleware) {
	menu := rg.Group("/menu")
	menu.Use(authMiddleware.RequireToken())
	{
		menu.GET("/days", h.ListDays)
		menu.GET("/days/:date", h.GetDay)
	}
	admin := menu.Group("")
	admin.Use(authMiddleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/days", h.PostDay)
		admin.POST("/days/:date/items", h.PostItem)
		admin.PUT("/items/:id", h.PutItem)
		admin.PATCH("/items/:id", h.PatchItemAvailability)
		admin.DELETE("/items/:id", h.DeleteItem)
		admin.POST("/apply/day", h.ApplyDay)
		admin.POST("/apply/shuffle", h.ApplyShuffle)
		admin.POST("/apply/week", h.ApplyWeek)
		admin.POST("/apply/bulk", h.ApplyBulk)
	}

	templates := rg.Group("/templates")
	templates.Use(authMiddleware.RequireToken(), authMiddleware.RequireRole(auth.RoleAdmin))
	{
		templates.GET("", h.ListTemplates)
		templates.POST("", h.PostTemplate)
		templates.GET("/:id", h.GetTemplate)
		templates.PUT("/:id", h.PutTemplate)
		templates.DELETE("/:id", h.DeleteTemplate)
		templates.POST("/:id/items", h.PostTemplateItem)
		templates.PUT("/:id/items/:itemId", h.PutTemplateItem)
		templates.DELETE("/:id/items/:itemId", h.DeleteTemplateItem)
	}

	groups := rg.Group("/template-groups")
	groups.Use(authMiddleware.RequireToken(), authMiddleware.RequireRole(auth.RoleAdmin))
	{
		groups.GET("", h.ListGroups)
		groups.POST("", h.PostGroup)
		groups.GET("/:id", h.GetGroup)
		groups.GET("/:id/stats", h.GetGroupStats)
		groups.PUT("/:id", h.PutGroup)
		groups.DELETE("/:id", h.DeleteGroup)
	}

	plans := rg.Group("/week-plans")
	plans.Use(authMiddleware.RequireToken(), authMiddleware.RequireRole(auth.RoleAdmin))
	{
		plans.GET("", h.ListWeekPlans)
		plans.POST("", h.PostWeekPlan)
		plans.GET("/:id", h.GetWeekPlan)
		plans.PUT("/:id", h.PutWeekPlan)
		plans.DELETE("/:id", h.DeleteWeekPlan)
	}
}
