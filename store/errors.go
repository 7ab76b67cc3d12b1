package store

import apperrors "github.com/HydroTrack/hydrotrack-backend/errors"

// Data-store service codes surfaced by DocumentStore implementations.
const (
	CodePermissionDenied   = "firestore/permission-denied"
	CodeNotFound           = "firestore/not-found"
	CodeAlreadyExists      = "firestore/already-exists"
	CodeResourceExhausted  = "firestore/resource-exhausted"
	CodeFailedPrecondition = "firestore/failed-precondition"
	CodeAborted            = "firestore/aborted"
	CodeOutOfRange         = "firestore/out-of-range"
	CodeUnimplemented      = "firestore/unimplemented"
	CodeInternal           = "firestore/internal"
	CodeUnavailable        = "firestore/unavailable"
	CodeDataLoss           = "firestore/data-loss"
	CodeUnauthenticated    = "firestore/unauthenticated"
)

// NewError returns a data-store ServiceError with the given code.
func NewError(code, message string) *apperrors.ServiceError {
	return apperrors.NewServiceError(code, message)
}
