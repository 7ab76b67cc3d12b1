// Package store defines the persistence interfaces consumed by the health
// monitor and diagnostics runner.
package store

import (
	"context"

	"github.com/HydroTrack/hydrotrack-backend/types"
)

// DocumentStore reads documents by collection path.
type DocumentStore interface {
	// Get returns at most limit documents from collectionPath, newest first.
	Get(ctx context.Context, collectionPath string, limit int) ([]types.Document, error)
	Ping(ctx context.Context) error
}
