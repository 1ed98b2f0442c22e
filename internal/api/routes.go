package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jroosing/domainguard/internal/api/handlers"
	"github.com/jroosing/domainguard/internal/api/middleware"
	"github.com/jroosing/domainguard/internal/config"
)

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	// Health stays reachable without the key for load balancer probes.
	api.GET("/health", h.Health)

	if cfg != nil && cfg.API.APIKey != "" {
		api.Use(middleware.RequireAPIKey(cfg.API.APIKey))
	}

	api.GET("/stats", h.Stats)

	api.GET("/sources", h.ListSources)
	api.POST("/sources", h.AddSource)
	api.POST("/sources/refresh", h.RefreshAllSources)
	api.POST("/sources/:id/refresh", h.RefreshSource)
	api.PUT("/sources/:id/enabled", h.SetSourceEnabled)
	api.DELETE("/sources/:id", h.DeleteSource)

	api.GET("/rules", h.ListRules)
	api.POST("/rules", h.AddRule)
	api.PUT("/rules/:id/enabled", h.SetRuleEnabled)
	api.DELETE("/rules/:id", h.DeleteRule)

	api.GET("/query", h.Query)
	api.POST("/apply", h.Apply)
	api.POST("/revert", h.Revert)
}
