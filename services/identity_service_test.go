package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/HydroTrack/hydrotrack-backend/errors"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWKSServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := jwk.FromRaw(&priv.PublicKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-kid"))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(key))
	body, err := json.Marshal(set)
	require.NoError(t, err)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestJWKSIdentityService_CurrentPrincipal(t *testing.T) {
	srv, hits := newJWKSServer(t, http.StatusOK)
	credential := `{"type":"service_account","project_id":"hydrotrack-prod","client_email":"svc@hydrotrack-prod.iam.gserviceaccount.com","client_id":"1234"}`
	s := NewJWKSIdentityService(srv.URL, credential, time.Second)

	p, err := s.CurrentPrincipal(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "1234", p.ID)
	assert.Equal(t, "svc@hydrotrack-prod.iam.gserviceaccount.com", p.Email)
	assert.Equal(t, "hydrotrack-prod", p.ProjectID)
	assert.Equal(t, "service_account", p.Kind)

	_, err = s.CurrentPrincipal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "key set should be cached")
}

func TestJWKSIdentityService_NoCredential(t *testing.T) {
	srv, _ := newJWKSServer(t, http.StatusOK)
	s := NewJWKSIdentityService(srv.URL, "  ", time.Second)

	p, err := s.CurrentPrincipal(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestJWKSIdentityService_InvalidCredential(t *testing.T) {
	srv, _ := newJWKSServer(t, http.StatusOK)

	for _, credential := range []string{"not json", `{"project_id":"p"}`} {
		s := NewJWKSIdentityService(srv.URL, credential, time.Second)
		_, err := s.CurrentPrincipal(context.Background())
		require.Error(t, err)

		appErr := apperrors.Normalize(err)
		assert.Equal(t, CodeIdentityInvalidCredential, appErr.Code)
		assert.Equal(t, apperrors.KindAuthorization, appErr.Kind)
	}
}

func TestJWKSIdentityService_Unreachable(t *testing.T) {
	srv, _ := newJWKSServer(t, http.StatusServiceUnavailable)
	s := NewJWKSIdentityService(srv.URL, "", time.Second)

	_, err := s.CurrentPrincipal(context.Background())
	require.Error(t, err)
	appErr := apperrors.Normalize(err)
	assert.Equal(t, CodeIdentityNetwork, appErr.Code)
	assert.Equal(t, apperrors.KindAuthentication, appErr.Kind)
	assert.Equal(t, "Network error. Please check your connection and try again.", appErr.UserMessage)
}

func TestJWKSIdentityService_CacheExpiry(t *testing.T) {
	srv, hits := newJWKSServer(t, http.StatusOK)
	s := NewJWKSIdentityService(srv.URL, "", time.Second)
	clock := newFakeClock()
	s.now = clock.Now

	_, err := s.CurrentPrincipal(context.Background())
	require.NoError(t, err)
	clock.Advance(s.cacheTTL + time.Second)
	_, err = s.CurrentPrincipal(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
}

func TestJWKSIdentityService_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv, hits := newJWKSServer(t, http.StatusBadGateway)
	s := NewJWKSIdentityService(srv.URL, "", time.Second)

	for i := 0; i < jwksFailureThreshold; i++ {
		_, err := s.CurrentPrincipal(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, int32(jwksFailureThreshold), hits.Load())

	_, err := s.CurrentPrincipal(context.Background())
	require.Error(t, err)
	appErr := apperrors.Normalize(err)
	assert.Equal(t, apperrors.KindAuthentication, appErr.Kind)
	assert.Equal(t, CodeIdentityNetwork, appErr.Code)
	assert.Contains(t, appErr.InternalMessage, "circuit breaker is open")
	assert.Equal(t, int32(jwksFailureThreshold), hits.Load(), "open breaker must not reach the provider")
}
