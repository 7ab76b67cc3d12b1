package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/HydroTrack/hydrotrack-backend/config"
	apperrors "github.com/HydroTrack/hydrotrack-backend/errors"
	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/HydroTrack/hydrotrack-backend/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Suite names, in run order.
const (
	SuiteEnvironment   = "environment"
	SuiteErrorHandling = "error-handling"
	SuiteConnectivity  = "connectivity"
	SuiteSecurity      = "security"
)

// errSkip marks a probe that does not apply to the current context.
var errSkip = stderrors.New("not applicable")

type probeOutcome struct {
	message string
	details interface{}
}

type probe struct {
	name string
	// only restricts the probe to one context; empty means both.
	only config.Context
	run  func(ctx context.Context) (probeOutcome, error)
}

type suite struct {
	name   string
	probes []probe
}

// DiagnosticsDependencies are the collaborators exercised by the diagnostics runner.
type DiagnosticsDependencies struct {
	Source    config.Source
	Validator EnvironmentValidator
	Store     DocumentStore
	Identity  IdentityService
	Health    *HealthService
}

// DiagnosticsService runs named probes grouped into suites and reports the outcome
// of each. It is diagnostic only and never changes application state.
type DiagnosticsService struct {
	deps            DiagnosticsDependencies
	appCtx          config.Context
	probeCollection string
	retryDelay      time.Duration
	now             func() time.Time
	log             *zap.SugaredLogger
}

// NewDiagnosticsService creates a diagnostics runner for the given execution context.
func NewDiagnosticsService(deps DiagnosticsDependencies, appCtx config.Context, probeCollection string) *DiagnosticsService {
	if appCtx == "" {
		appCtx = config.ContextServer
	}
	if probeCollection == "" {
		probeCollection = "health_checks"
	}
	return &DiagnosticsService{
		deps:            deps,
		appCtx:          appCtx,
		probeCollection: probeCollection,
		retryDelay:      10 * time.Millisecond,
		now:             time.Now,
		log:             logger.GetLogger(),
	}
}

// Run executes every suite and wraps the reports with a run identifier.
func (d *DiagnosticsService) Run(ctx context.Context) types.DiagnosticsReport {
	report := types.DiagnosticsReport{
		RunID:     uuid.NewString(),
		Context:   string(d.appCtx),
		StartedAt: d.now().UTC(),
	}
	report.Suites = d.RunComprehensiveTests(ctx)

	d.log.Infow("Diagnostics run completed",
		"run_id", report.RunID,
		"context", report.Context,
		"failed", report.Failed())
	return report
}

// RunComprehensiveTests runs the environment, error-handling, connectivity and
// security suites in that order.
func (d *DiagnosticsService) RunComprehensiveTests(ctx context.Context) []types.TestSuiteReport {
	suites := d.suites()
	reports := make([]types.TestSuiteReport, 0, len(suites))
	for _, s := range suites {
		reports = append(reports, d.runSuite(ctx, s))
	}
	return reports
}

func (d *DiagnosticsService) runSuite(ctx context.Context, s suite) types.TestSuiteReport {
	results := make([]types.TestResult, 0, len(s.probes))
	for _, p := range s.probes {
		results = append(results, d.runProbe(ctx, s.name, p))
	}
	return types.TestSuiteReport{
		SuiteName: s.name,
		Results:   results,
		Summary:   Summarize(results),
	}
}

func (d *DiagnosticsService) runProbe(ctx context.Context, suiteName string, p probe) types.TestResult {
	if p.only != "" && p.only != d.appCtx {
		return types.TestResult{
			Name:    p.name,
			Status:  types.TestStatusSkip,
			Message: fmt.Sprintf("Only applies to the %s context", p.only),
		}
	}

	start := time.Now()
	out, appErr := apperrors.Handle(ctx, p.run, "")
	result := types.TestResult{
		Name:       p.name,
		DurationMs: time.Since(start).Milliseconds(),
	}

	switch {
	case appErr == nil:
		result.Status = types.TestStatusPass
		result.Message = out.message
		result.Details = out.details
	case stderrors.Is(appErr, errSkip):
		result.Status = types.TestStatusSkip
		result.Message = appErr.UserMessage
	default:
		apperrors.LogError(appErr, "diagnostics "+suiteName+"/"+p.name)
		result.Status = types.TestStatusFail
		result.Message = appErr.UserMessage
		details := map[string]interface{}{"kind": appErr.Kind}
		if appErr.Code != "" {
			details["code"] = appErr.Code
		}
		if keys, ok := appErr.Details.([]string); ok && appErr.Kind == apperrors.KindEnvironment {
			details["missingKeys"] = keys
		}
		result.Details = details
	}
	return result
}

// Summarize aggregates a suite's results.
func Summarize(results []types.TestResult) types.TestSummary {
	summary := types.TestSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case types.TestStatusPass:
			summary.Passed++
		case types.TestStatusFail:
			summary.Failed++
		case types.TestStatusSkip:
			summary.Skipped++
		}
		summary.DurationMs += r.DurationMs
	}
	return summary
}

func (d *DiagnosticsService) suites() []suite {
	return []suite{
		{name: SuiteEnvironment, probes: d.environmentProbes()},
		{name: SuiteErrorHandling, probes: d.errorHandlingProbes()},
		{name: SuiteConnectivity, probes: d.connectivityProbes()},
		{name: SuiteSecurity, probes: d.securityProbes()},
	}
}

func (d *DiagnosticsService) lookup(key string) (string, bool) {
	if d.deps.Source == nil {
		return "", false
	}
	v, ok := d.deps.Source.Lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (d *DiagnosticsService) environmentProbes() []probe {
	return []probe{
		{
			name: "required configuration present",
			run: func(ctx context.Context) (probeOutcome, error) {
				if d.deps.Validator == nil {
					return probeOutcome{}, apperrors.New(apperrors.KindEnvironment, "", "no environment validator", "Environment validator not configured")
				}
				env, err := d.deps.Validator.Validate(d.appCtx)
				if err != nil {
					return probeOutcome{}, err
				}
				return probeOutcome{
					message: fmt.Sprintf("All required %s keys are set", d.appCtx),
					details: map[string]interface{}{"keys": env.Keys()},
				}, nil
			},
		},
		{
			name: "optional configuration",
			run: func(ctx context.Context) (probeOutcome, error) {
				var present, absent []string
				for _, key := range config.OptionalKeys(d.appCtx) {
					if _, ok := d.lookup(key); ok {
						present = append(present, key)
					} else {
						absent = append(absent, key)
					}
				}
				return probeOutcome{
					message: fmt.Sprintf("%d of %d optional keys set", len(present), len(present)+len(absent)),
					details: map[string]interface{}{"present": present, "absent": absent},
				}, nil
			},
		},
		{
			name: "service account credential parses",
			only: config.ContextServer,
			run: func(ctx context.Context) (probeOutcome, error) {
				raw, ok := d.lookup(config.KeyFirebaseServiceAccount)
				if !ok {
					return probeOutcome{}, &config.EnvironmentError{Context: config.ContextServer, MissingKeys: []string{config.KeyFirebaseServiceAccount}}
				}
				var sa serviceAccount
				if err := json.Unmarshal([]byte(raw), &sa); err != nil || sa.ClientEmail == "" {
					return probeOutcome{}, apperrors.NewServiceError(CodeIdentityInvalidCredential, "service account key does not parse")
				}
				return probeOutcome{message: "Service account credential is well formed"}, nil
			},
		},
	}
}

func (d *DiagnosticsService) errorHandlingProbes() []probe {
	return []probe{
		{
			name: "service codes are classified",
			run: func(ctx context.Context) (probeOutcome, error) {
				cases := map[string]apperrors.Kind{
					"firestore/permission-denied": apperrors.KindAuthorization,
					"firestore/unavailable":       apperrors.KindBackendService,
					"auth/wrong-password":         apperrors.KindAuthentication,
					"auth/invalid-credential":     apperrors.KindAuthorization,
				}
				for code, want := range cases {
					if got := apperrors.Normalize(apperrors.NewServiceError(code, "")).Kind; got != want {
						return probeOutcome{}, fmt.Errorf("code %s classified as %s, want %s", code, got, want)
					}
				}
				return probeOutcome{message: "Service codes map to the expected kinds"}, nil
			},
		},
		{
			name: "unknown inputs are captured",
			run: func(ctx context.Context) (probeOutcome, error) {
				if got := apperrors.Normalize("plain message"); got.UserMessage != "plain message" {
					return probeOutcome{}, fmt.Errorf("string input produced %q", got.UserMessage)
				}
				opaque := apperrors.Normalize(42)
				if opaque.Kind != apperrors.KindUnknown || opaque.Details != 42 {
					return probeOutcome{}, fmt.Errorf("opaque input not captured in details")
				}
				return probeOutcome{message: "Strings and opaque values normalize as expected"}, nil
			},
		},
		{
			name: "validation failures are not retried",
			run: func(ctx context.Context) (probeOutcome, error) {
				calls := 0
				_, err := apperrors.WithRetry(ctx, func(context.Context) (struct{}, error) {
					calls++
					return struct{}{}, apperrors.ValidationFailed("diagnostic probe")
				}, apperrors.RetryOptions{MaxAttempts: 3, Delay: d.retryDelay})
				if apperrors.Normalize(err).Kind != apperrors.KindValidation || calls != 1 {
					return probeOutcome{}, fmt.Errorf("validation failure attempted %d times", calls)
				}
				return probeOutcome{message: "Validation failures fail fast", details: map[string]int{"attempts": calls}}, nil
			},
		},
		{
			name: "transient failures are retried",
			run: func(ctx context.Context) (probeOutcome, error) {
				calls := 0
				_, err := apperrors.WithRetry(ctx, func(context.Context) (struct{}, error) {
					calls++
					if calls < 2 {
						return struct{}{}, apperrors.NewServiceError("firestore/unavailable", "diagnostic probe")
					}
					return struct{}{}, nil
				}, apperrors.RetryOptions{MaxAttempts: 3, Delay: d.retryDelay})
				if err != nil {
					return probeOutcome{}, err
				}
				return probeOutcome{message: "Transient failures recover on retry", details: map[string]int{"attempts": calls}}, nil
			},
		},
	}
}

func (d *DiagnosticsService) connectivityProbes() []probe {
	return []probe{
		{
			name: "document store",
			run: func(ctx context.Context) (probeOutcome, error) {
				if d.deps.Store == nil {
					return probeOutcome{}, apperrors.New(apperrors.KindBackendService, "", "no document store", "Document store not configured")
				}
				docs, err := d.deps.Store.Get(ctx, d.probeCollection, 1)
				if err != nil {
					return probeOutcome{}, err
				}
				return probeOutcome{
					message: "Document store is reachable",
					details: map[string]interface{}{"collection": d.probeCollection, "documents": len(docs)},
				}, nil
			},
		},
		{
			name: "identity service",
			run: func(ctx context.Context) (probeOutcome, error) {
				if d.deps.Identity == nil {
					return probeOutcome{}, apperrors.New(apperrors.KindBackendService, "", "no identity service", "Identity service not configured")
				}
				p, err := d.deps.Identity.CurrentPrincipal(ctx)
				if err != nil {
					return probeOutcome{}, err
				}
				return probeOutcome{
					message: "Identity service is reachable",
					details: map[string]interface{}{"authenticated": p != nil},
				}, nil
			},
		},
		{
			name: "health monitor",
			run: func(ctx context.Context) (probeOutcome, error) {
				if d.deps.Health == nil {
					return probeOutcome{}, apperrors.New(apperrors.KindBackendService, "", "no health monitor", "Health monitor not configured")
				}
				status := d.deps.Health.CheckHealth(ctx)
				if status.OverallStatus == types.OverallUnhealthy {
					return probeOutcome{}, apperrors.New(apperrors.KindBackendService, "", "health monitor reports unhealthy", "One or more health checks are failing")
				}
				return probeOutcome{
					message: fmt.Sprintf("Health monitor reports %s", status.OverallStatus),
					details: map[string]interface{}{"overallStatus": status.OverallStatus},
				}, nil
			},
		},
	}
}

// serverSecretKeys must never be present in a client deployment.
var serverSecretKeys = []string{
	config.KeyFirebaseServiceAccount,
	config.KeyTwilioAuthToken,
	config.KeyFCMServerKey,
}

func (d *DiagnosticsService) securityProbes() []probe {
	return []probe{
		{
			name: "server secrets absent from client",
			only: config.ContextClient,
			run: func(ctx context.Context) (probeOutcome, error) {
				var leaked []string
				for _, key := range serverSecretKeys {
					if _, ok := d.lookup(key); ok {
						leaked = append(leaked, key)
					}
				}
				if len(leaked) > 0 {
					return probeOutcome{}, apperrors.New(apperrors.KindEnvironment, "",
						"server secrets present in client context: "+strings.Join(leaked, ", "),
						"Server credentials are exposed to the client configuration")
				}
				return probeOutcome{message: "No server secrets in client configuration"}, nil
			},
		},
		{
			name: "credentials are masked in logs",
			only: config.ContextServer,
			run: func(ctx context.Context) (probeOutcome, error) {
				raw, ok := d.lookup(config.KeyFirebaseServiceAccount)
				if !ok {
					return probeOutcome{}, errSkipf("no service account credential configured")
				}
				if logger.MaskSensitiveString(raw, 4, 4) == raw {
					return probeOutcome{}, fmt.Errorf("masked credential equals the raw value")
				}
				return probeOutcome{message: "Credential values are masked before logging"}, nil
			},
		},
		{
			name: "error responses hide internals",
			run: func(ctx context.Context) (probeOutcome, error) {
				const secret = "password=hunter2"
				body, err := json.Marshal(apperrors.Normalize(fmt.Errorf("connect failed: %s", secret)))
				if err != nil {
					return probeOutcome{}, err
				}
				if strings.Contains(string(body), secret) {
					return probeOutcome{}, fmt.Errorf("serialized error exposes internal message")
				}
				return probeOutcome{message: "Serialized errors carry only the user message"}, nil
			},
		},
	}
}

// errSkipf returns an error that marks the probe as skipped with a message.
func errSkipf(format string, args ...interface{}) error {
	return &apperrors.AppError{
		Kind:            apperrors.KindUnknown,
		InternalMessage: fmt.Sprintf(format, args...),
		UserMessage:     fmt.Sprintf(format, args...),
		Raw:             errSkip,
	}
}
