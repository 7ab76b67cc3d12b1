package services

import (
	"context"
	"sync"
	"time"

	"github.com/HydroTrack/hydrotrack-backend/config"
	apperrors "github.com/HydroTrack/hydrotrack-backend/errors"
	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/HydroTrack/hydrotrack-backend/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultHealthCacheTTL     = 30 * time.Second
	DefaultHealthProbeTimeout = 5 * time.Second

	// minErrorRateWindow floors the elapsed time used for the error rate so the
	// first minutes after start do not produce a spike.
	minErrorRateWindow = 0.1 // hours

	healthFlightKey = "health"
)

// HealthDependencies are the collaborators probed by the health monitor. Any of
// them may be nil, in which case the corresponding probe warns.
type HealthDependencies struct {
	Validator EnvironmentValidator
	// Gateways is read for push and SMS gateway credentials.
	Gateways config.Source
	Store    DocumentStore
	Identity IdentityService
}

// HealthServiceConfig tunes the health monitor.
type HealthServiceConfig struct {
	Context         config.Context
	Version         string
	CacheTTL        time.Duration
	ProbeTimeout    time.Duration
	ProbeCollection string
}

// HealthService runs the health probes, aggregates their outcome and keeps the
// error counters used for derived metrics.
type HealthService struct {
	checks       []namedCheck
	version      string
	cacheTTL     time.Duration
	probeTimeout time.Duration
	now          func() time.Time
	log          *zap.SugaredLogger
	metrics      *healthMetrics
	flight       singleflight.Group

	mu         sync.RWMutex
	cached     *types.HealthStatus
	startTime  time.Time
	errorCount int64
	// generation is bumped by ResetMetrics so in-flight computations started
	// before a reset do not repopulate the cache.
	generation uint64
}

// NewHealthService creates a health monitor. It is intended to be created once by
// the hosting application and shared.
func NewHealthService(deps HealthDependencies, cfg HealthServiceConfig) *HealthService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultHealthCacheTTL
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultHealthProbeTimeout
	}
	if cfg.Context == "" {
		cfg.Context = config.ContextServer
	}
	if cfg.ProbeCollection == "" {
		cfg.ProbeCollection = "health_checks"
	}

	s := &HealthService{
		checks: []namedCheck{
			{name: types.CheckEnvironment, fn: environmentCheck(deps.Validator, cfg.Context)},
			{name: types.CheckBackendServices, fn: backendServicesCheck(deps.Gateways, cfg.Context)},
			{name: types.CheckDataStore, fn: dataStoreCheck(deps.Store, cfg.ProbeCollection)},
			{name: types.CheckIdentity, fn: identityCheck(deps.Identity)},
		},
		version:      cfg.Version,
		cacheTTL:     cfg.CacheTTL,
		probeTimeout: cfg.ProbeTimeout,
		now:          time.Now,
		log:          logger.GetLogger(),
		metrics:      newHealthMetrics(),
	}
	s.startTime = s.now()
	return s
}

// CheckHealth returns the current health status. A status computed less than the
// cache window ago is returned as is; otherwise all probes run concurrently and the
// result replaces the cache. Concurrent callers share a single computation. The
// returned value must not be modified.
func (s *HealthService) CheckHealth(ctx context.Context) *types.HealthStatus {
	if status := s.cachedStatus(); status != nil {
		return status
	}

	v, _, _ := s.flight.Do(healthFlightKey, func() (interface{}, error) {
		if status := s.cachedStatus(); status != nil {
			return status, nil
		}

		s.mu.RLock()
		gen := s.generation
		s.mu.RUnlock()

		// Shared by every waiting caller, so one caller going away must not
		// cancel the probes.
		status := s.compute(context.WithoutCancel(ctx))

		s.mu.Lock()
		if s.generation == gen {
			s.cached = status
		}
		s.mu.Unlock()
		return status, nil
	})
	return v.(*types.HealthStatus)
}

func (s *HealthService) cachedStatus() *types.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached != nil && s.now().Sub(s.cached.CheckedAt) < s.cacheTTL {
		return s.cached
	}
	return nil
}

func (s *HealthService) compute(ctx context.Context) *types.HealthStatus {
	results := make([]types.HealthCheckResult, len(s.checks))

	var g errgroup.Group
	for i, c := range s.checks {
		g.Go(func() error {
			results[i] = s.runCheck(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	checks := make(map[string]types.HealthCheckResult, len(results))
	statuses := make([]types.CheckStatus, 0, len(results))
	var total time.Duration
	for i, r := range results {
		checks[s.checks[i].name] = r
		statuses = append(statuses, r.Status)
		total += r.Duration
	}

	status := &types.HealthStatus{
		OverallStatus: types.AggregateStatus(statuses...),
		CheckedAt:     s.now(),
		Checks:        checks,
		Version:       s.version,
	}
	status.Metrics = s.deriveMetrics(status.CheckedAt, total, len(results))

	s.metrics.overallStatus.Set(overallStatusValue(status.OverallStatus))
	if status.OverallStatus != types.OverallHealthy {
		s.log.Warnw("Health check completed with problems", "status", status.OverallStatus)
	} else {
		s.log.Debugw("Health check completed", "status", status.OverallStatus)
	}
	return status
}

// runCheck runs one probe with its own timeout. Errors and panics become a failed
// result so one probe can never affect the others.
func (s *HealthService) runCheck(ctx context.Context, c namedCheck) (result types.HealthCheckResult) {
	start := s.now()
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result = s.failedResult(c.name, apperrors.Normalize(r))
		}
		result.CheckedAt = s.now()
		result.Duration = result.CheckedAt.Sub(start)
		s.metrics.checksTotal.WithLabelValues(c.name, string(result.Status)).Inc()
		s.metrics.checkDuration.WithLabelValues(c.name).Observe(result.Duration.Seconds())
	}()

	res, err := c.fn(probeCtx)
	if err != nil {
		return s.failedResult(c.name, apperrors.Normalize(err))
	}
	return res
}

func (s *HealthService) failedResult(name string, appErr *apperrors.AppError) types.HealthCheckResult {
	apperrors.LogError(appErr, "health check "+name)
	details := map[string]interface{}{"kind": appErr.Kind}
	if appErr.Code != "" {
		details["code"] = appErr.Code
	}
	return types.HealthCheckResult{
		Status:  types.CheckStatusFail,
		Message: appErr.UserMessage,
		Details: details,
	}
}

func (s *HealthService) deriveMetrics(at time.Time, total time.Duration, probes int) types.HealthMetrics {
	s.mu.RLock()
	start, count := s.startTime, s.errorCount
	s.mu.RUnlock()

	elapsed := at.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	hours := elapsed.Hours()
	if hours < minErrorRateWindow {
		hours = minErrorRateWindow
	}

	var avg float64
	if probes > 0 {
		avg = float64(total.Microseconds()) / 1000 / float64(probes)
	}

	return types.HealthMetrics{
		ErrorRate:           float64(count) / hours,
		AverageResponseTime: avg,
		UptimeMs:            elapsed.Milliseconds(),
	}
}

// RecordError counts err towards the error rate and logs it together with
// keysAndValues. The normalized error is returned for the caller's convenience.
func (s *HealthService) RecordError(err interface{}, keysAndValues ...interface{}) *apperrors.AppError {
	appErr := apperrors.Normalize(err)

	s.mu.Lock()
	s.errorCount++
	s.mu.Unlock()

	s.metrics.recordedErrors.WithLabelValues(string(appErr.Kind)).Inc()
	apperrors.LogError(appErr, "recorded error", keysAndValues...)
	return appErr
}

// ErrorCount returns the number of errors recorded since start or the last reset.
func (s *HealthService) ErrorCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errorCount
}

// ResetMetrics zeroes the error counter, restarts the uptime clock and drops the
// cached status.
func (s *HealthService) ResetMetrics() {
	s.mu.Lock()
	s.errorCount = 0
	s.startTime = s.now()
	s.cached = nil
	s.generation++
	s.mu.Unlock()

	s.flight.Forget(healthFlightKey)
	s.log.Info("Health metrics reset")
}
