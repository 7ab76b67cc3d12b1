package services

import (
	"sync"

	"github.com/HydroTrack/hydrotrack-backend/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// healthMetrics holds Prometheus metrics for the health monitor.
type healthMetrics struct {
	checksTotal    *prometheus.CounterVec
	checkDuration  *prometheus.HistogramVec
	overallStatus  prometheus.Gauge
	recordedErrors *prometheus.CounterVec
}

// Registered once per process; several monitors may exist in tests.
var (
	hmInstance        *healthMetrics
	hmOnce            sync.Once
	hmDefaultRegistry = prometheus.DefaultRegisterer
)

func newHealthMetrics() *healthMetrics {
	hmOnce.Do(func() {
		hmInstance = &healthMetrics{
			checksTotal: promauto.With(hmDefaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "hydrotrack_health_checks_total",
				Help: "Total number of health probe executions by outcome",
			}, []string{"check", "status"}),
			checkDuration: promauto.With(hmDefaultRegistry).NewHistogramVec(prometheus.HistogramOpts{
				Name:    "hydrotrack_health_check_duration_seconds",
				Help:    "Time taken by each health probe",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			}, []string{"check"}),
			overallStatus: promauto.With(hmDefaultRegistry).NewGauge(prometheus.GaugeOpts{
				Name: "hydrotrack_health_overall_status",
				Help: "Last computed overall status (2 healthy, 1 degraded, 0 unhealthy)",
			}),
			recordedErrors: promauto.With(hmDefaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "hydrotrack_recorded_errors_total",
				Help: "Errors recorded with the health monitor by kind",
			}, []string{"kind"}),
		}
	})
	return hmInstance
}

func overallStatusValue(s types.OverallStatus) float64 {
	switch s {
	case types.OverallHealthy:
		return 2
	case types.OverallDegraded:
		return 1
	default:
		return 0
	}
}
