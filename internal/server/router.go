package server

import (
	"github.com/gin-gonic/gin"

	"github.com/adcraft-ai/adcraft-backend/internal/http/handlers"
	"github.com/adcraft-ai/adcraft-backend/internal/http/middleware"
	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log               *logger.Logger
	HealthHandler     *handlers.HealthHandler
	SuggestionHandler *handlers.SuggestionHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(cfg.Log))

	router.GET("/healthz", cfg.HealthHandler.HealthCheck)

	api := router.Group("/api/v1")
	api.Use(middleware.InjectionGuard(cfg.Log))
	{
		api.POST("/suggestions", cfg.SuggestionHandler.Generate)
		api.GET("/products/:id/templates", cfg.SuggestionHandler.MatchedTemplates)
		api.DELETE("/suggestions/cache", cfg.SuggestionHandler.InvalidateCache)
	}

	return router
}
