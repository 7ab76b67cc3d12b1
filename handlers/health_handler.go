package handlers

import (
	"net/http"

	"github.com/HydroTrack/hydrotrack-backend/types"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	healthService      HealthChecker
	diagnosticsService DiagnosticsRunner
}

func NewHealthHandler(healthService HealthChecker, diagnosticsService DiagnosticsRunner) *HealthHandler {
	return &HealthHandler{
		healthService:      healthService,
		diagnosticsService: diagnosticsService,
	}
}

// LivenessCheck handles kubernetes liveness probe
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}

// ReadinessCheck handles kubernetes readiness probe. Degraded still counts as ready.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	health := h.healthService.CheckHealth(c.Request.Context())

	if health.OverallStatus == types.OverallUnhealthy {
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	c.JSON(http.StatusOK, health)
}

// DetailedHealth provides detailed health information
func (h *HealthHandler) DetailedHealth(c *gin.Context) {
	health := h.healthService.CheckHealth(c.Request.Context())
	c.JSON(http.StatusOK, health)
}

// Diagnostics runs all diagnostics suites and returns the report.
func (h *HealthHandler) Diagnostics(c *gin.Context) {
	report := h.diagnosticsService.Run(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

// ResetMetrics clears the health monitor counters and cache.
func (h *HealthHandler) ResetMetrics(c *gin.Context) {
	h.healthService.ResetMetrics()
	c.Status(http.StatusNoContent)
}
