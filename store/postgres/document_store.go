// Package postgres implements the document store on top of a PostgreSQL
// documents table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/HydroTrack/hydrotrack-backend/errors"
	"github.com/HydroTrack/hydrotrack-backend/store"
	"github.com/HydroTrack/hydrotrack-backend/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool used by DocumentStore.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// MaxLimit caps a single Get.
const MaxLimit = 500

// DocumentStore implements store.DocumentStore using PostgreSQL.
type DocumentStore struct {
	db Querier
}

var _ store.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a new DocumentStore instance.
func NewDocumentStore(db Querier) *DocumentStore {
	return &DocumentStore{db: db}
}

// Get retrieves up to limit documents from a collection, most recently updated first.
func (s *DocumentStore) Get(ctx context.Context, collectionPath string, limit int) ([]types.Document, error) {
	collectionPath = strings.Trim(strings.TrimSpace(collectionPath), "/")
	if collectionPath == "" {
		return nil, apperrors.ValidationFailed("collection path is required")
	}
	if limit <= 0 || limit > MaxLimit {
		return nil, apperrors.ValidationFailed(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}

	query := `
		SELECT id, collection, data, updated_at
		FROM documents
		WHERE collection = $1
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, collectionPath, limit)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	docs := make([]types.Document, 0, limit)
	for rows.Next() {
		var (
			doc  types.Document
			data []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Collection, &data, &doc.UpdatedAt); err != nil {
			return nil, translateError(err)
		}
		doc.Data = data
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}

	return docs, nil
}

// Ping checks that the database is reachable.
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return translateError(err)
	}
	return nil
}

// translateError maps driver failures onto data-store service codes. Context
// cancellation and deadline errors pass through untouched so they normalize
// as network failures.
func translateError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return store.NewError(codeForSQLState(pgErr.Code), pgErr.Message)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return store.NewError(store.CodeUnavailable, connErr.Error())
	}

	return store.NewError(store.CodeInternal, err.Error())
}

func codeForSQLState(state string) string {
	switch state {
	case "42501":
		return store.CodePermissionDenied
	case "28000", "28P01":
		return store.CodeUnauthenticated
	case "23505":
		return store.CodeAlreadyExists
	case "42P01", "3D000":
		return store.CodeFailedPrecondition
	case "40001", "40P01":
		return store.CodeAborted
	case "22003":
		return store.CodeOutOfRange
	case "0A000":
		return store.CodeUnimplemented
	case "XX001", "XX002":
		return store.CodeDataLoss
	}

	switch {
	case strings.HasPrefix(state, "53"):
		return store.CodeResourceExhausted
	case strings.HasPrefix(state, "08"), strings.HasPrefix(state, "57P"):
		return store.CodeUnavailable
	}
	return store.CodeInternal
}
