package types

import "time"

// CheckStatus is the outcome of a single health probe.
type CheckStatus string

const (
	CheckStatusPass CheckStatus = "pass"
	CheckStatusWarn CheckStatus = "warn"
	CheckStatusFail CheckStatus = "fail"
)

// OverallStatus is the aggregate of all probes.
type OverallStatus string

const (
	OverallHealthy   OverallStatus = "healthy"
	OverallDegraded  OverallStatus = "degraded"
	OverallUnhealthy OverallStatus = "unhealthy"
)

// Names of the probes run by the health monitor.
const (
	CheckEnvironment     = "environment"
	CheckBackendServices = "backendServices"
	CheckDataStore       = "dataStore"
	CheckIdentity        = "identity"
)

// HealthCheckResult is produced by one probe and never modified afterwards.
type HealthCheckResult struct {
	Status    CheckStatus `json:"status" yaml:"status"`
	Message   string      `json:"message" yaml:"message"`
	Details   interface{} `json:"details,omitempty" yaml:"details,omitempty"`
	CheckedAt time.Time   `json:"checkedAt" yaml:"checkedAt"`
	// Duration is how long the probe took.
	Duration time.Duration `json:"-" yaml:"-"`
}

// HealthMetrics are derived from the monitor's counters at computation time.
type HealthMetrics struct {
	ErrorRate           float64 `json:"errorRate" yaml:"errorRate"`
	AverageResponseTime float64 `json:"averageResponseTime" yaml:"averageResponseTime"`
	UptimeMs            int64   `json:"uptimeMs" yaml:"uptimeMs"`
}

// HealthStatus is one complete health computation. It is replaced wholesale on
// recomputation; holders of a pointer must treat it as read-only.
type HealthStatus struct {
	OverallStatus OverallStatus                `json:"overallStatus" yaml:"overallStatus"`
	CheckedAt     time.Time                    `json:"checkedAt" yaml:"checkedAt"`
	Checks        map[string]HealthCheckResult `json:"checks" yaml:"checks"`
	Metrics       HealthMetrics                `json:"metrics" yaml:"metrics"`
	Version       string                       `json:"version,omitempty" yaml:"version,omitempty"`
}

// AggregateStatus combines probe outcomes: unhealthy if any failed, otherwise
// degraded if any warned, otherwise healthy.
func AggregateStatus(statuses ...CheckStatus) OverallStatus {
	overall := OverallHealthy
	for _, s := range statuses {
		switch s {
		case CheckStatusFail:
			return OverallUnhealthy
		case CheckStatusWarn:
			overall = OverallDegraded
		}
	}
	return overall
}
