package services

import (
	"context"

	"github.com/HydroTrack/hydrotrack-backend/config"
	"github.com/HydroTrack/hydrotrack-backend/store"
	"github.com/HydroTrack/hydrotrack-backend/types"
)

// IdentityService reports the principal the backend is currently authenticated as.
// A nil principal with a nil error means no principal is signed in.
type IdentityService interface {
	CurrentPrincipal(ctx context.Context) (*types.Principal, error)
}

// DocumentStore is the read side of the document store used for liveness probing.
type DocumentStore = store.DocumentStore

// EnvironmentValidator validates the key set for an execution context.
type EnvironmentValidator interface {
	Validate(ctx config.Context) (config.EnvironmentConfig, error)
	IsValid(ctx config.Context) bool
}

var _ EnvironmentValidator = (*config.EnvValidator)(nil)
