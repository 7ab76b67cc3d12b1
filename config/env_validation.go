package config

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/HydroTrack/hydrotrack-backend/errors"
	"github.com/spf13/viper"
)

// Context names the execution context whose configuration is being validated.
type Context string

const (
	// ContextClient covers values shipped to browsers and mobile clients.
	ContextClient Context = "client"
	// ContextServer covers privileged credentials that never leave the server.
	ContextServer Context = "server"
)

// Client configuration keys.
const (
	KeyFirebaseAPIKey            = "FIREBASE_API_KEY"
	KeyFirebaseAuthDomain        = "FIREBASE_AUTH_DOMAIN"
	KeyFirebaseProjectID         = "FIREBASE_PROJECT_ID"
	KeyFirebaseStorageBucket     = "FIREBASE_STORAGE_BUCKET"
	KeyFirebaseMessagingSenderID = "FIREBASE_MESSAGING_SENDER_ID"
	KeyFirebaseAppID             = "FIREBASE_APP_ID"
	KeyFirebaseVAPIDKey          = "FIREBASE_VAPID_KEY"
	KeyRecaptchaSiteKey          = "RECAPTCHA_SITE_KEY"
)

// Server configuration keys.
const (
	KeyFirebaseServiceAccount = "FIREBASE_SERVICE_ACCOUNT_KEY"
	KeyTwilioAccountSID       = "TWILIO_ACCOUNT_SID"
	KeyTwilioAuthToken        = "TWILIO_AUTH_TOKEN"
	KeyTwilioPhoneNumber      = "TWILIO_PHONE_NUMBER"
	KeyFCMServerKey           = "FCM_SERVER_KEY"
)

var (
	clientRequiredKeys = []string{
		KeyFirebaseAPIKey,
		KeyFirebaseAuthDomain,
		KeyFirebaseProjectID,
		KeyFirebaseStorageBucket,
		KeyFirebaseMessagingSenderID,
		KeyFirebaseAppID,
	}
	clientOptionalKeys = []string{
		KeyFirebaseVAPIDKey,
		KeyRecaptchaSiteKey,
	}
	serverRequiredKeys = []string{
		KeyFirebaseServiceAccount,
	}
	serverOptionalKeys = []string{
		KeyTwilioAccountSID,
		KeyTwilioAuthToken,
		KeyTwilioPhoneNumber,
		KeyFCMServerKey,
	}
)

// RequiredKeys returns the keys that must be set for ctx.
func RequiredKeys(ctx Context) []string {
	switch ctx {
	case ContextClient:
		return append([]string(nil), clientRequiredKeys...)
	case ContextServer:
		return append([]string(nil), serverRequiredKeys...)
	default:
		return nil
	}
}

// OptionalKeys returns the keys that are picked up for ctx when present.
func OptionalKeys(ctx Context) []string {
	switch ctx {
	case ContextClient:
		return append([]string(nil), clientOptionalKeys...)
	case ContextServer:
		return append([]string(nil), serverOptionalKeys...)
	default:
		return nil
	}
}

// Source supplies raw configuration values.
type Source interface {
	Lookup(key string) (string, bool)
}

// MapSource is a Source backed by a plain map.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// ViperSource reads values from a viper instance, which in turn sees the process
// environment through AutomaticEnv.
type ViperSource struct {
	v *viper.Viper
}

// NewViperSource wraps v. A nil v gets a fresh instance bound to the environment.
func NewViperSource(v *viper.Viper) *ViperSource {
	if v == nil {
		v = viper.New()
		v.AutomaticEnv()
	}
	return &ViperSource{v: v}
}

// Lookup implements Source.
func (s *ViperSource) Lookup(key string) (string, bool) {
	if !s.v.IsSet(key) {
		return "", false
	}
	return s.v.GetString(key), true
}

// EnvironmentConfig is the validated configuration for one context. It is read-only:
// accessors hand out copies.
type EnvironmentConfig struct {
	context Context
	values  map[string]string
}

// Context returns the context the configuration was validated for.
func (c EnvironmentConfig) Context() Context { return c.context }

// Get returns the value of key, if present.
func (c EnvironmentConfig) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is present.
func (c EnvironmentConfig) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Len returns the number of keys present.
func (c EnvironmentConfig) Len() int { return len(c.values) }

// Keys returns the present keys in sorted order.
func (c EnvironmentConfig) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the key/value pairs.
func (c EnvironmentConfig) Values() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// EnvironmentError reports required keys that are missing or blank.
type EnvironmentError struct {
	Context     Context
	MissingKeys []string
}

func (e *EnvironmentError) Error() string {
	if e == nil {
		return "<nil environment error>"
	}
	return fmt.Sprintf("missing required %s environment variables: %s",
		e.Context, strings.Join(e.MissingKeys, ", "))
}

// MissingConfigKeys lets the error normalizer classify this error without importing
// the config package.
func (e *EnvironmentError) MissingConfigKeys() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.MissingKeys...)
}

// EnvValidator checks required and optional keys for a context against a Source.
type EnvValidator struct {
	source Source
}

// NewEnvValidator creates a validator reading from source.
func NewEnvValidator(source Source) *EnvValidator {
	return &EnvValidator{source: source}
}

// Validate collects the keys for ctx and fails with *EnvironmentError listing every
// required key that is absent or blank after trimming. Optional keys are included only
// when they hold a non-blank value.
func (v *EnvValidator) Validate(ctx Context) (EnvironmentConfig, error) {
	required, optional := RequiredKeys(ctx), OptionalKeys(ctx)
	if required == nil {
		return EnvironmentConfig{}, apperrors.ValidationFailed(fmt.Sprintf("unknown configuration context %q", ctx))
	}

	raw := make(map[string]string, len(required)+len(optional))
	var missing []string
	for _, key := range required {
		val, ok := v.lookup(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		raw[key] = val
	}
	if len(missing) > 0 {
		return EnvironmentConfig{}, &EnvironmentError{Context: ctx, MissingKeys: missing}
	}

	for _, key := range optional {
		if val, ok := v.lookup(key); ok {
			raw[key] = val
		}
	}

	return EnvironmentConfig{context: ctx, values: raw}, nil
}

// IsValid reports whether Validate would succeed for ctx.
func (v *EnvValidator) IsValid(ctx Context) bool {
	_, err := v.Validate(ctx)
	return err == nil
}

// lookup returns the trimmed value for key, treating blank values as absent.
func (v *EnvValidator) lookup(key string) (string, bool) {
	if v.source == nil {
		return "", false
	}
	val, ok := v.source.Lookup(key)
	if !ok {
		return "", false
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false
	}
	return val, true
}
