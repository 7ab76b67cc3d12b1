package errors

import (
	"context"
	"time"

	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

// LogError writes err to the application log. label names the operation that failed
// and keysAndValues carry extra context such as request fields. In production mode
// only the kind, code and user message are written.
func LogError(err *AppError, label string, keysAndValues ...interface{}) {
	logError(logger.GetLogger(), logger.CurrentMode(), err, label, keysAndValues...)
}

func logError(log *zap.SugaredLogger, mode logger.Mode, err *AppError, label string, keysAndValues ...interface{}) {
	if err == nil {
		return
	}

	fields := []interface{}{
		"kind", err.Kind,
		"code", err.Code,
		"user_message", err.UserMessage,
	}
	if mode != logger.ModeProduction {
		fields = append(fields, "internal_message", err.InternalMessage)
		if err.Details != nil {
			fields = append(fields, "details", err.Details)
		}
		if err.Trace != "" {
			fields = append(fields, "trace", err.Trace)
		}
	}
	if label != "" {
		fields = append(fields, "context", label)
	}
	fields = append(fields, keysAndValues...)

	log.Errorw("Application error", fields...)
}

// Handle runs op and converts any failure, including a panic, into an AppError.
// Exactly one of the return values is meaningful: a nil *AppError is the only
// success signal, and the result is then valid even when it is itself nil (an
// absent document, for example). On failure the result is T's zero value. When
// label is non-empty the failure is logged under it.
func Handle[T any](ctx context.Context, op func(context.Context) (T, error), label string) (result T, appErr *AppError) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			appErr = Normalize(r)
			if label != "" {
				LogError(appErr, label)
			}
		}
	}()

	res, err := op(ctx)
	if err != nil {
		appErr = Normalize(err)
		if label != "" {
			LogError(appErr, label)
		}
		var zero T
		return zero, appErr
	}
	return res, nil
}

// RetryOptions configures WithRetry. Zero values fall back to DefaultMaxAttempts
// and DefaultRetryDelay.
type RetryOptions struct {
	MaxAttempts int
	Delay       time.Duration
	Label       string
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Delay <= 0 {
		o.Delay = DefaultRetryDelay
	}
	return o
}

// WithRetry runs op up to MaxAttempts times with a fixed delay between attempts.
// Authentication, authorization and validation failures are returned on first
// occurrence. The final failure is logged and returned as an *AppError. Cancelling
// ctx aborts a pending delay.
func WithRetry[T any](ctx context.Context, op func(context.Context) (T, error), opts RetryOptions) (T, error) {
	opts = opts.withDefaults()
	log := logger.GetLogger()

	result, err := retry.DoWithData(
		func() (T, error) {
			res, err := op(ctx)
			if err != nil {
				return res, Normalize(err)
			}
			return res, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(opts.MaxAttempts)),
		retry.Delay(opts.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			if int(n)+1 >= opts.MaxAttempts || !IsRetryable(err) {
				return
			}
			log.Warnw("Operation failed, retrying",
				"context", opts.Label,
				"attempt", n+1,
				"max_attempts", opts.MaxAttempts,
				"delay", opts.Delay,
				"error", err)
		}),
	)
	if err != nil {
		appErr := Normalize(err)
		LogError(appErr, opts.Label, "max_attempts", opts.MaxAttempts)
		var zero T
		return zero, appErr
	}
	return result, nil
}

// IsRetryable reports whether err, once normalized, may be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Normalize(err).Retryable()
}
