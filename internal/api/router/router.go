package router

import (
	"net/http"

	"github.com/cuongbtq/photo-relay/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))

	// Root endpoint tells callers where the webhook lives
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":      true,
			"service": "photo-relay",
			"note":    "webhook is at /webhook/photo",
		})
	})

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "photo-relay",
		})
	})

	// Result deliveries from the upstream transformation API
	callbackHandler := handler.NewCallbackHandler(deps)
	r.POST("/webhook/photo", callbackHandler.HandleCallback)

	return r
}
