package meals

import (
	"canteen/internal/auth"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(rg *gin.RouterGroup, h *Handler, authMiddleware *auth.Middleware) {
	student := rg.Group("/student")
	student.Use(authMiddleware.RequireToken(), authMiddleware.RequireRole(auth.RoleStudent))
	{
		student.GET("/balance", h.GetBalance)
		student.GET("/payments", h.ListPayments)
		student.POST("/payments", h.PostPayment)
		student.GET("/subscriptions", h.ListSubscriptions)
		student.POST("/subscriptions", h.PostSubscription)
		student.GET("/meals", h.ListMeals)
		student.POST("/meals/pickup", h.PostPickup)
		student.POST("/meals/:id/confirm", h.ConfirmMeal)
		student.GET("/allergies", h.ListAllergies)
		student.POST("/allergies", h.PostAllergy)
		student.DELETE("/allergies/:id", h.DeleteAllergy)
		student.GET("/preferences", h.ListPreferences)
		student.POST("/preferences", h.PostPreference)
		student.DELETE("/preferences/:id", h.DeletePreference)
		student.GET("/reviews", h.ListReviews)
		student.POST("/reviews", h.PostReview)
		student.DELETE("/reviews/:id", h.DeleteReview)
	}

	items := rg.Group("/menu/items")
	items.Use(authMiddleware.RequireToken())
	{
		items.GET("/:id/reviews", h.ItemReviews)
	}

	kitchen := rg.Group("/kitchen")
	kitchen.Use(authMiddleware.RequireToken(), authMiddleware.RequireRole(auth.RoleCook))
	{
		kitchen.GET("/meals/today", h.TodayMeals)
	}
}
