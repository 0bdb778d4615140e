package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sellerdesk/variant-engine/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log *zap.SugaredLogger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(RequestLogger(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Marketplace exports run large; cap the in-memory part of uploads.
	router.MaxMultipartMemory = 32 << 20

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		catalog := v1.Group("/catalog")
		{
			catalog.POST("/import", handler.ImportCatalog)
			catalog.GET("/products", handler.ListProducts)
		}

		detection := v1.Group("/detection")
		{
			detection.POST("/run", handler.RunDetection)
		}

		suggestions := v1.Group("/suggestions")
		{
			suggestions.GET("", handler.ListSuggestions)
			suggestions.GET("/:id", handler.GetSuggestion)
			suggestions.POST("/:id/accept", handler.AcceptSuggestion)
			suggestions.POST("/:id/reject", handler.RejectSuggestion)
		}

		groups := v1.Group("/groups")
		{
			groups.GET("", handler.ListGroups)
			groups.POST("", handler.CreateManualGroup)
			groups.GET("/:id", handler.GetGroup)
			groups.DELETE("/:id", handler.DeleteGroup)
			groups.POST("/:id/unlink", handler.UnlinkMember)
			groups.PUT("/:id/main", handler.SetMainProduct)
		}

		feedback := v1.Group("/feedback")
		{
			feedback.GET("", handler.FeedbackHistory)
			feedback.DELETE("", handler.ClearFeedback)
		}
	}

	return router
}
