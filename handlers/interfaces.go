package handlers

import (
	"context"

	"github.com/HydroTrack/hydrotrack-backend/types"
)

// HealthChecker is the health monitor as seen by handlers.
type HealthChecker interface {
	CheckHealth(ctx context.Context) *types.HealthStatus
	ResetMetrics()
}

// DiagnosticsRunner runs every diagnostics suite once.
type DiagnosticsRunner interface {
	Run(ctx context.Context) types.DiagnosticsReport
}
