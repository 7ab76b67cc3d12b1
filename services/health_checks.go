package services

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/HydroTrack/hydrotrack-backend/config"
	"github.com/HydroTrack/hydrotrack-backend/types"
	"github.com/samber/lo"
)

// CheckFunc is a single health probe. A returned error is converted to a failed
// result by the monitor; a probe may also report fail or warn directly.
type CheckFunc func(ctx context.Context) (types.HealthCheckResult, error)

type namedCheck struct {
	name string
	fn   CheckFunc
}

// gateway groups the keys one outbound delivery channel needs.
type gateway struct {
	name string
	keys []string
}

func gatewaysFor(appCtx config.Context) []gateway {
	if appCtx == config.ContextClient {
		return []gateway{
			{name: "push", keys: []string{config.KeyFirebaseVAPIDKey}},
		}
	}
	return []gateway{
		{name: "sms", keys: []string{config.KeyTwilioAccountSID, config.KeyTwilioAuthToken, config.KeyTwilioPhoneNumber}},
		{name: "push", keys: []string{config.KeyFCMServerKey}},
	}
}

func environmentCheck(v EnvironmentValidator, appCtx config.Context) CheckFunc {
	return func(ctx context.Context) (types.HealthCheckResult, error) {
		if v == nil {
			return types.HealthCheckResult{Status: types.CheckStatusWarn, Message: "Environment validator not configured"}, nil
		}

		env, err := v.Validate(appCtx)
		if err != nil {
			var envErr *config.EnvironmentError
			if stderrors.As(err, &envErr) {
				return types.HealthCheckResult{
					Status:  types.CheckStatusFail,
					Message: "Missing required configuration",
					Details: map[string]interface{}{
						"context":     string(appCtx),
						"missingKeys": envErr.MissingKeys,
					},
				}, nil
			}
			return types.HealthCheckResult{}, err
		}

		return types.HealthCheckResult{
			Status:  types.CheckStatusPass,
			Message: "Environment configuration is valid",
			Details: map[string]interface{}{
				"context":    string(appCtx),
				"keyCount":   env.Len(),
				"configured": env.Keys(),
			},
		}, nil
	}
}

// backendServicesCheck confirms the push and SMS gateways are configured. It
// never contacts the gateways.
func backendServicesCheck(source config.Source, appCtx config.Context) CheckFunc {
	return func(ctx context.Context) (types.HealthCheckResult, error) {
		if source == nil {
			return types.HealthCheckResult{Status: types.CheckStatusWarn, Message: "Backend service configuration source not available"}, nil
		}

		configured := make(map[string]bool)
		var missing []string
		for _, gw := range gatewaysFor(appCtx) {
			absent := lo.Filter(gw.keys, func(key string, _ int) bool {
				value, found := source.Lookup(key)
				return !found || strings.TrimSpace(value) == ""
			})
			configured[gw.name] = len(absent) == 0
			missing = append(missing, absent...)
		}

		details := map[string]interface{}{"services": configured}
		if len(missing) > 0 {
			details["missingKeys"] = missing
			return types.HealthCheckResult{
				Status:  types.CheckStatusWarn,
				Message: "Some backend services are not configured",
				Details: details,
			}, nil
		}
		return types.HealthCheckResult{
			Status:  types.CheckStatusPass,
			Message: "All backend services are configured",
			Details: details,
		}, nil
	}
}

func dataStoreCheck(s DocumentStore, collection string) CheckFunc {
	return func(ctx context.Context) (types.HealthCheckResult, error) {
		if s == nil {
			return types.HealthCheckResult{Status: types.CheckStatusWarn, Message: "Document store not configured"}, nil
		}

		docs, err := s.Get(ctx, collection, 1)
		if err != nil {
			return types.HealthCheckResult{}, err
		}
		return types.HealthCheckResult{
			Status:  types.CheckStatusPass,
			Message: "Document store is reachable",
			Details: map[string]interface{}{
				"collection": collection,
				"documents":  len(docs),
			},
		}, nil
	}
}

func identityCheck(id IdentityService) CheckFunc {
	return func(ctx context.Context) (types.HealthCheckResult, error) {
		if id == nil {
			return types.HealthCheckResult{Status: types.CheckStatusWarn, Message: "Identity service not configured"}, nil
		}

		principal, err := id.CurrentPrincipal(ctx)
		if err != nil {
			return types.HealthCheckResult{}, err
		}
		if principal == nil {
			return types.HealthCheckResult{
				Status:  types.CheckStatusPass,
				Message: "Identity service is reachable",
				Details: map[string]interface{}{"authenticated": false},
			}, nil
		}
		return types.HealthCheckResult{
			Status:  types.CheckStatusPass,
			Message: "Identity service is reachable",
			Details: map[string]interface{}{
				"authenticated": true,
				"principalKind": principal.Kind,
			},
		}, nil
	}
}
