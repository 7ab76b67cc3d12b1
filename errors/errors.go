// Package errors defines the canonical application error shape and the helpers that
// convert arbitrary failures into it, log it, and retry operations that produce it.
package errors

import (
	"fmt"
	"net/http"
)

// Kind classifies an AppError. It decides the HTTP status, whether an operation may be
// retried, and which generic message an end user sees.
type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION"
	KindAuthorization  Kind = "AUTHORIZATION"
	KindNetwork        Kind = "NETWORK"
	KindValidation     Kind = "VALIDATION"
	KindBackendService Kind = "BACKEND_SERVICE"
	KindEnvironment    Kind = "ENVIRONMENT"
	KindUnknown        Kind = "UNKNOWN"
)

// User-facing fallback messages. None of them may include internal detail.
const (
	GenericUserMessage     = "An unexpected error occurred. Please try again."
	ServiceUserMessage     = "A service error occurred. Please try again."
	NetworkUserMessage     = "Network error. Please check your connection and try again."
	EnvironmentUserMessage = "The application is not configured correctly. Please contact support."
)

// AppError is the single error shape that crosses component boundaries.
// Only Kind, Code and UserMessage are ever rendered to a client; the remaining
// fields are for logs.
type AppError struct {
	Kind            Kind        `json:"kind"`
	Code            string      `json:"code,omitempty"`
	InternalMessage string      `json:"-"`
	UserMessage     string      `json:"message"`
	Details         interface{} `json:"-"`
	Trace           string      `json:"-"`
	Raw             error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.InternalMessage)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.InternalMessage)
}

// Unwrap exposes the error the AppError was built from, if any.
func (e *AppError) Unwrap() error {
	return e.Raw
}

// HTTPStatus maps the error kind to a response status code.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNetwork:
		return http.StatusServiceUnavailable
	case KindBackendService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether an operation that failed with this error may be attempted
// again. Credential and input problems are never transient.
func (e *AppError) Retryable() bool {
	switch e.Kind {
	case KindAuthentication, KindAuthorization, KindValidation:
		return false
	default:
		return true
	}
}

// New creates an AppError with explicit messages.
func New(kind Kind, code, internalMessage, userMessage string) *AppError {
	return &AppError{
		Kind:            kind,
		Code:            code,
		InternalMessage: internalMessage,
		UserMessage:     userMessage,
	}
}

// Wrap attaches a kind and user message to a raw error, keeping the raw error
// for logging and errors.Is checks.
func Wrap(err error, kind Kind, userMessage string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Kind:            kind,
		InternalMessage: err.Error(),
		UserMessage:     userMessage,
		Trace:           stackTrace(err),
		Raw:             err,
	}
}

// ValidationFailed is shorthand for a validation error whose message is safe to show.
func ValidationFailed(message string) *AppError {
	return &AppError{
		Kind:            KindValidation,
		InternalMessage: message,
		UserMessage:     message,
	}
}

// ServiceError is a failure reported by the managed identity or document platform.
// Code is the platform's machine-readable code, e.g. "auth/wrong-password" or
// "firestore/permission-denied".
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ServiceError) Error() string {
	if e == nil {
		return "<nil service error>"
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ServiceCode implements the interface Normalize uses to recognise coded errors.
func (e *ServiceError) ServiceCode() string {
	if e == nil {
		return ""
	}
	return e.Code
}

// NewServiceError creates a ServiceError.
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}
