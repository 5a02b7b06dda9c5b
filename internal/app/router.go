// internal/app/router.go
package app

import (
	handoffHandler "fitbridge-service/internal/handlers/handoff"
	nutritionHandler "fitbridge-service/internal/handlers/nutrition"
	wsHandler "fitbridge-service/internal/handlers/ws"
	"fitbridge-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	HandoffHandler   *handoffHandler.HandoffHandler
	AuthHandler      *handoffHandler.AuthHandler
	NutritionHandler *nutritionHandler.NutritionHandler
	WSHandler        *wsHandler.WebSocketHandler
	AuthMiddleware   *middleware.AuthMiddleware
	ServiceToken     string
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		// Browser-side leg of the handoff
		authPublic.GET("/callback/:provider", h.HandoffHandler.Callback)

		// App-side leg of the handoff
		authPublic.POST("/pending/lookup", h.HandoffHandler.LookupPending)
		authPublic.POST("/pending/consume", h.HandoffHandler.ConsumePending)
	}

	// ==================== Internal Auth Routes ====================
	authInternal := api.Group("/auth")
	authInternal.Use(middleware.ServiceToken(h.ServiceToken))
	{
		authInternal.POST("/pending/create", h.HandoffHandler.CreatePending)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/logout-all", h.AuthHandler.LogoutAll)
		authProtected.GET("/me", h.AuthHandler.GetMe)
		authProtected.GET("/sessions", h.AuthHandler.GetActiveSessions)
	}

	// ==================== Nutrition ====================
	nutrition := api.Group("/nutrition")
	nutrition.Use(h.AuthMiddleware.Auth())
	{
		nutrition.POST("/logs", h.NutritionHandler.CreateLog)
		nutrition.GET("/logs", h.NutritionHandler.ListLogs)
		nutrition.GET("/summary", h.NutritionHandler.GetSummary)
		nutrition.DELETE("/logs/:id", h.NutritionHandler.DeleteLog)
	}
}
