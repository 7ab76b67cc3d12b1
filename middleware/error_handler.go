package middleware

import (
	"net/http"

	apperrors "github.com/HydroTrack/hydrotrack-backend/errors"
	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the only error shape rendered to clients.
type ErrorResponse struct {
	Kind      apperrors.Kind `json:"kind"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message"`
	RequestID string         `json:"requestId,omitempty"`
}

// ErrorRecorder counts and logs request failures. *services.HealthService
// implements it so request errors feed the health error rate.
type ErrorRecorder interface {
	RecordError(err interface{}, keysAndValues ...interface{}) *apperrors.AppError
}

// reportError hands appErr to recorder, or only logs it when recorder is nil.
func reportError(recorder ErrorRecorder, c *gin.Context, appErr *apperrors.AppError, label string) {
	fields := logger.RequestFields(c)
	if recorder == nil {
		apperrors.LogError(appErr, label, fields...)
		return
	}
	recorder.RecordError(appErr, append([]interface{}{"source", label}, fields...)...)
}

// ErrorHandler renders the last error attached to the context. Errors are
// normalized first; internal messages and traces only reach the log. recorder may
// be nil.
func ErrorHandler(recorder ErrorRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		last := c.Errors.Last()
		var appErr *apperrors.AppError
		if last.Type == gin.ErrorTypeBind {
			appErr = apperrors.Wrap(last.Err, apperrors.KindValidation, "Failed to bind request")
		} else {
			appErr = apperrors.Normalize(last.Err)
		}

		reportError(recorder, c, appErr, "http request")

		if c.Writer.Written() {
			return
		}
		RespondWithError(c, appErr.HTTPStatus(), appErr)
	}
}

// RecoveryHandler converts panics in handlers into a generic error response. The
// panic value is logged, never rendered. recorder may be nil.
func RecoveryHandler(recorder ErrorRecorder) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		appErr := apperrors.Normalize(recovered)
		reportError(recorder, c, appErr, "panic recovered")
		RespondWithError(c, http.StatusInternalServerError,
			apperrors.New(apperrors.KindUnknown, "", appErr.InternalMessage, apperrors.GenericUserMessage))
	})
}

// RespondWithError aborts the request with an ErrorResponse built from appErr.
func RespondWithError(c *gin.Context, status int, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Kind:      appErr.Kind,
		Code:      appErr.Code,
		Message:   appErr.UserMessage,
		RequestID: c.GetString(RequestIDKey),
	})
}
