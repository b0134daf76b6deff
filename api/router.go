package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/api/handlers"
	"github.com/yourusername/media-fetch-go/api/middleware"
	"github.com/yourusername/media-fetch-go/internal/app"
	"github.com/yourusername/media-fetch-go/internal/domain"
	"github.com/yourusername/media-fetch-go/pkg/logger"
)

// Dependencies are the components the HTTP surface is built on
type Dependencies struct {
	QueueManager   *app.QueueManager
	RequestManager *app.RequestManager
	Fetcher        app.Fetcher
	Logger         *zap.Logger
	MultiLogger    *logger.MultiLogger
	LogsDir        string
	RateLimit      domain.RateLimitConfig
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(deps.Logger, deps.MultiLogger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(deps.QueueManager)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		// Synchronous fetch
		fetchHandler := handlers.NewFetchHandler(deps.Fetcher, deps.Logger)
		fetchChain := []gin.HandlerFunc{}
		if deps.RateLimit.Enabled {
			limiter := middleware.NewRateLimiter(deps.RateLimit.RPS, deps.RateLimit.Burst)
			fetchChain = append(fetchChain, middleware.RateLimit(limiter))
		}
		fetchChain = append(fetchChain, fetchHandler.Fetch)
		v1.POST("/fetch", fetchChain...)

		// Queued requests
		requestHandler := handlers.NewRequestHandler(deps.QueueManager, deps.RequestManager, deps.Logger)
		progressHandler := handlers.NewProgressWebSocketHandler(deps.QueueManager, deps.RequestManager.Feed(), deps.Logger)
		requests := v1.Group("/requests")
		{
			requests.POST("", requestHandler.AddRequest)
			requests.GET("", requestHandler.ListRequests)
			requests.GET("/stats", requestHandler.GetStats)
			requests.GET("/:id", requestHandler.GetRequest)
			requests.GET("/:id/progress", progressHandler.HandleWebSocket)
			requests.POST("/:id/cancel", requestHandler.CancelRequest)
			requests.POST("/:id/retry", requestHandler.RetryRequest)
			requests.DELETE("/:id", requestHandler.DeleteRequest)
		}

		// Log endpoints
		logHandler := handlers.NewLogHandler(deps.LogsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
