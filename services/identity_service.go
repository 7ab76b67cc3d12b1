package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/HydroTrack/hydrotrack-backend/errors"
	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/HydroTrack/hydrotrack-backend/types"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Identity service codes produced by JWKSIdentityService.
const (
	CodeIdentityNetwork           = "auth/network-request-failed"
	CodeIdentityInvalidCredential = "auth/invalid-credential"
	CodeIdentityInternal          = "auth/internal-error"
)

const principalKindServiceAccount = "service_account"

// jwksFailureThreshold consecutive fetch failures open the breaker for jwksBreakerCooldown.
const (
	jwksFailureThreshold = 3
	jwksBreakerCooldown  = 30 * time.Second
)

// serviceAccount is the subset of a service-account key file we read.
type serviceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	ClientID    string `json:"client_id"`
}

// JWKSIdentityService confirms the identity provider is reachable by fetching its
// public key set and resolves the principal from the configured service-account
// credential.
type JWKSIdentityService struct {
	jwksURL    string
	credential string
	httpClient *http.Client
	cacheTTL   time.Duration
	now        func() time.Time
	log        *zap.SugaredLogger
	breaker    *gobreaker.CircuitBreaker

	mu        sync.Mutex
	keys      jwk.Set
	fetchedAt time.Time
}

var _ IdentityService = (*JWKSIdentityService)(nil)

// NewJWKSIdentityService creates an identity service. credential is the raw
// service-account JSON and may be empty.
func NewJWKSIdentityService(jwksURL, credential string, timeout time.Duration) *JWKSIdentityService {
	log := logger.GetLogger()
	return &JWKSIdentityService{
		jwksURL:    jwksURL,
		credential: strings.TrimSpace(credential),
		httpClient: &http.Client{Timeout: timeout},
		cacheTTL:   5 * time.Minute,
		now:        time.Now,
		log:        log,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "identity-jwks",
			Timeout: jwksBreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= jwksFailureThreshold
			},
			// A caller giving up says nothing about the provider.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warnw("Identity provider circuit breaker changed state",
					"breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// CurrentPrincipal returns the configured service-account principal, or nil when no
// credential is configured. The provider key set must be reachable either way.
func (s *JWKSIdentityService) CurrentPrincipal(ctx context.Context) (*types.Principal, error) {
	if _, err := s.keySet(ctx); err != nil {
		return nil, err
	}

	if s.credential == "" {
		return nil, nil
	}

	var sa serviceAccount
	if err := json.Unmarshal([]byte(s.credential), &sa); err != nil {
		return nil, apperrors.NewServiceError(CodeIdentityInvalidCredential, "service account key is not valid JSON")
	}
	if sa.ClientEmail == "" {
		return nil, apperrors.NewServiceError(CodeIdentityInvalidCredential, "service account key has no client_email")
	}

	id := sa.ClientID
	if id == "" {
		id = sa.ClientEmail
	}
	return &types.Principal{
		ID:        id,
		Email:     sa.ClientEmail,
		ProjectID: sa.ProjectID,
		Kind:      principalKindServiceAccount,
	}, nil
}

// keySet returns the cached provider key set, refreshing it when stale.
func (s *JWKSIdentityService) keySet(ctx context.Context) (jwk.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys != nil && s.now().Sub(s.fetchedAt) < s.cacheTTL {
		return s.keys, nil
	}

	v, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetchKeys(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperrors.NewServiceError(CodeIdentityNetwork, "identity provider unavailable: "+err.Error())
	}
	if err != nil {
		return nil, err
	}
	set := v.(jwk.Set)
	s.keys = set
	s.fetchedAt = s.now()
	s.log.Debugw("Refreshed identity provider key set", "keys", set.Len())
	return set, nil
}

func (s *JWKSIdentityService) fetchKeys(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.jwksURL, nil)
	if err != nil {
		return nil, apperrors.NewServiceError(CodeIdentityInternal, fmt.Sprintf("invalid JWKS URL: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewServiceError(CodeIdentityNetwork, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewServiceError(CodeIdentityNetwork, fmt.Sprintf("JWKS endpoint returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.NewServiceError(CodeIdentityNetwork, err.Error())
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, apperrors.NewServiceError(CodeIdentityInternal, fmt.Sprintf("failed to parse JWKS: %v", err))
	}
	if set.Len() == 0 {
		return nil, apperrors.NewServiceError(CodeIdentityInternal, "JWKS contains no keys")
	}
	return set, nil
}
