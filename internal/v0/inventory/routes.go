package inventory

import (
	"canteen/internal/auth"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(rg *gin.RouterGroup, h *Handler, authMiddleware *auth.Middleware) {
	inv := rg.Group("/inventory")
	inv.Use(authMiddleware.RequireToken(), authMiddleware.RequireRole(auth.RoleCook))
	{
		inv.GET("/products", h.ListProducts)
		inv.POST("/products/:id/adjust", h.AdjustStock)
		inv.GET("/products/:id/movements", h.ListMovements)
		inv.GET("/purchase-requests", h.ListPurchaseRequests)
		inv.POST("/purchase-requests", h.PostPurchaseRequest)
		inv.DELETE("/purchase-requests/:id", h.DeletePurchaseRequest)
	}

	admin := inv.Group("")
	admin.Use(authMiddleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/products", h.PostProduct)
		admin.POST("/purchase-requests/:id/decision", h.DecidePurchaseRequest)
	}
}
