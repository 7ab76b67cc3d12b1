package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"reflect"
	"strings"

	cerrors "github.com/cockroachdb/errors"
)

const (
	identityCodePrefix  = "auth/"
	dataStoreCodePrefix = "firestore/"
)

// serviceMessages maps backend-service codes to the message shown to users.
var serviceMessages = map[string]string{
	// identity service
	"auth/user-not-found":            "No account found with this email address.",
	"auth/wrong-password":            "Incorrect password. Please try again.",
	"auth/invalid-credential":        "Invalid login credentials. Please try again.",
	"auth/email-already-in-use":      "An account with this email already exists.",
	"auth/weak-password":             "Password should be at least 6 characters long.",
	"auth/invalid-email":             "Please enter a valid email address.",
	"auth/user-disabled":             "This account has been disabled. Please contact support.",
	"auth/too-many-requests":         "Too many attempts. Please try again later.",
	"auth/network-request-failed":    "Network error. Please check your connection and try again.",
	"auth/invalid-verification-code": "Invalid verification code. Please try again.",
	"auth/code-expired":              "The verification code has expired. Please request a new one.",
	"auth/requires-recent-login":     "Please sign in again to complete this action.",
	"auth/invalid-phone-number":      "Please enter a valid phone number.",
	// document store
	"firestore/permission-denied":    "You don't have permission to perform this action.",
	"firestore/not-found":            "The requested data was not found.",
	"firestore/already-exists":       "This data already exists.",
	"firestore/resource-exhausted":   "Service is temporarily busy. Please try again later.",
	"firestore/failed-precondition":  "The operation could not be completed. Please refresh and try again.",
	"firestore/aborted":              "The operation was interrupted. Please try again.",
	"firestore/out-of-range":         "The requested value is out of range.",
	"firestore/unimplemented":        "This feature is not available yet.",
	"firestore/internal":             "An internal service error occurred. Please try again later.",
	"firestore/unavailable":          "Service is temporarily unavailable. Please try again later.",
	"firestore/data-loss":            "A data error occurred. Please contact support.",
	"firestore/unauthenticated":      "Please sign in to continue.",
}

// serviceCoder is satisfied by any error that carries a backend-service code.
type serviceCoder interface {
	ServiceCode() string
}

// environmentError is satisfied by configuration validation failures.
type environmentError interface {
	MissingConfigKeys() []string
}

// Normalize converts any failure value into an AppError. It never panics and never
// returns nil. Inputs are decoded in a fixed order: an existing AppError, a
// backend-service error, a configuration error, a transport error, any other error,
// a string, and finally an opaque value kept in Details.
func Normalize(input interface{}) *AppError {
	switch v := input.(type) {
	case *AppError:
		if v != nil {
			return v
		}
	case AppError:
		return &v
	case error:
		if v != nil {
			return fromError(v)
		}
	case string:
		return &AppError{
			Kind:            KindUnknown,
			InternalMessage: v,
			UserMessage:     v,
		}
	}

	return &AppError{
		Kind:            KindUnknown,
		InternalMessage: fmt.Sprintf("unrecognized failure value of type %T", input),
		UserMessage:     GenericUserMessage,
		Details:         input,
	}
}

func fromError(err error) *AppError {
	// A nil pointer stored in an error interface carries nothing to decode and
	// would panic on the first method call.
	if isNilPointer(err) {
		return &AppError{
			Kind:            KindUnknown,
			InternalMessage: fmt.Sprintf("nil error value of type %T", err),
			UserMessage:     GenericUserMessage,
			Details:         err,
		}
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr != nil {
		return appErr
	}

	var coded serviceCoder
	if stderrors.As(err, &coded) && !isNilPointer(coded) {
		return fromServiceCode(coded.ServiceCode(), err)
	}

	var envErr environmentError
	if stderrors.As(err, &envErr) && !isNilPointer(envErr) {
		return &AppError{
			Kind:            KindEnvironment,
			InternalMessage: err.Error(),
			UserMessage:     EnvironmentUserMessage,
			Details:         envErr.MissingConfigKeys(),
			Raw:             err,
		}
	}

	if isNetworkError(err) {
		return &AppError{
			Kind:            KindNetwork,
			InternalMessage: err.Error(),
			UserMessage:     NetworkUserMessage,
			Trace:           stackTrace(err),
			Raw:             err,
		}
	}

	return &AppError{
		Kind:            KindUnknown,
		InternalMessage: err.Error(),
		UserMessage:     GenericUserMessage,
		Trace:           stackTrace(err),
		Raw:             err,
	}
}

func fromServiceCode(code string, err error) *AppError {
	userMessage, ok := serviceMessages[code]
	if !ok {
		userMessage = ServiceUserMessage
	}

	internal := err.Error()
	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) && svcErr.Message != "" {
		internal = svcErr.Message
	}

	return &AppError{
		Kind:            ClassifyServiceCode(code),
		Code:            code,
		InternalMessage: internal,
		UserMessage:     userMessage,
		Raw:             err,
	}
}

// ClassifyServiceCode derives the error kind from a backend-service code.
func ClassifyServiceCode(code string) Kind {
	switch {
	case strings.HasPrefix(code, identityCodePrefix):
		if strings.Contains(code, "permission") || strings.Contains(code, "credential") {
			return KindAuthorization
		}
		return KindAuthentication
	case strings.HasPrefix(code, dataStoreCodePrefix):
		if strings.Contains(code, "permission") || strings.Contains(code, "unauthenticated") {
			return KindAuthorization
		}
		return KindBackendService
	default:
		return KindBackendService
	}
}

// UserMessageForCode returns the mapped message for a service code and whether the
// code is known.
func UserMessageForCode(code string) (string, bool) {
	msg, ok := serviceMessages[code]
	return msg, ok
}

func isNilPointer(v interface{}) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

func isNetworkError(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

// stackTrace renders the error with its recorded stack, or returns "" when no
// layer of the chain captured one.
func stackTrace(err error) string {
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if cerrors.GetReportableStackTrace(e) != nil {
			return fmt.Sprintf("%+v", err)
		}
	}
	return ""
}
