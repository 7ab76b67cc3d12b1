package router

import (
	"time"

	"github.com/HydroTrack/hydrotrack-backend/config"
	"github.com/HydroTrack/hydrotrack-backend/handlers"
	"github.com/HydroTrack/hydrotrack-backend/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Dependencies struct holds all dependencies required for setting up routes.
type Dependencies struct {
	Config        *config.Config
	HealthHandler *handlers.HealthHandler
	// ErrorRecorder counts request failures towards the health error rate; may be nil.
	ErrorRecorder middleware.ErrorRecorder
	// Redis backs the diagnostics rate limiter; nil falls back to an in-process limiter.
	Redis redis.Cmdable
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RecoveryHandler(deps.ErrorRecorder))
	r.Use(middleware.ErrorHandler(deps.ErrorRecorder))
	r.Use(middleware.SecurityHeadersMiddleware(&deps.Config.Server))
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))

	// Health and Metrics Routes
	r.GET("/health", deps.HealthHandler.DetailedHealth)
	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		limit := deps.Config.RateLimit.DiagnosticsRequestsPerMinute
		window := time.Duration(deps.Config.RateLimit.WindowSeconds) * time.Second

		diagnostics := v1.Group("/diagnostics")
		if deps.Redis != nil {
			diagnostics.Use(middleware.DiagnosticsRateLimiter(deps.Redis, limit, window))
		} else {
			diagnostics.Use(middleware.LocalDiagnosticsRateLimiter(limit, window))
		}
		diagnostics.GET("", deps.HealthHandler.Diagnostics)

		// Resetting counters is a test aid and stays out of production.
		if !deps.Config.IsProduction() {
			diagnostics.POST("/reset", deps.HealthHandler.ResetMetrics)
		}
	}

	return r
}
