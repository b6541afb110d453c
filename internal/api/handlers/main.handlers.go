package routes

import (
	"github.com/gin-gonic/gin"

	"canopy/internal/config"
	"canopy/internal/metrics"
)

// SetupMainHandlers registers the main application endpoints
func SetupMainHandlers(router *gin.RouterGroup, cfg config.Config) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "canopy",
			"status":  "ok",
			"port":    cfg.Port,
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
}
