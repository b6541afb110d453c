package api

import (
	routes "canopy/internal/api/handlers"

	"github.com/gin-gonic/gin"

	"canopy/internal/config"
	"canopy/internal/job"
)

// SetupRouter initializes all application routes
func SetupRouter(r *gin.Engine, runner *job.Runner, registry *job.Registry, cfg config.Config) {
	// API group
	api := r.Group("/api/v1")

	// Setup main handlers
	routes.SetupMainHandlers(r.Group(""), cfg)

	// Setup analysis handlers
	routes.SetupAnalysisHandlers(api, runner, registry, cfg)
}
