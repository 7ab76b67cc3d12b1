package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/HydroTrack/hydrotrack-backend/logger"
	cerrors "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}

func TestLogError_DevelopmentIncludesDetail(t *testing.T) {
	log, logs := newObservedLogger()
	appErr := Normalize(cerrors.New("intake write failed"))
	appErr.Details = map[string]int{"ml": 250}

	logError(log, logger.ModeDevelopment, appErr, "record intake")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, string(KindUnknown), fmt.Sprint(fields["kind"]))
	assert.Equal(t, GenericUserMessage, fields["user_message"])
	assert.Equal(t, "intake write failed", fields["internal_message"])
	assert.Contains(t, fields, "details")
	assert.Contains(t, fields, "trace")
	assert.Equal(t, "record intake", fields["context"])
}

func TestLogError_ProductionOmitsDiagnostics(t *testing.T) {
	log, logs := newObservedLogger()
	appErr := Normalize(cerrors.New("secret connection string postgres://u:p@h"))
	appErr.Details = "raw payload"

	logError(log, logger.ModeProduction, appErr, "record intake", "request_id", "abc")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Contains(t, fields, "kind")
	assert.Contains(t, fields, "code")
	assert.Contains(t, fields, "user_message")
	assert.NotContains(t, fields, "internal_message")
	assert.NotContains(t, fields, "details")
	assert.NotContains(t, fields, "trace")
	assert.Equal(t, "abc", fields["request_id"])
}

func TestLogError_Nil(t *testing.T) {
	log, logs := newObservedLogger()
	logError(log, logger.ModeDevelopment, nil, "noop")
	assert.Equal(t, 0, logs.Len())
}

func TestHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		res, appErr := Handle(ctx, func(context.Context) (int, error) { return 2000, nil }, "load goal")
		assert.Nil(t, appErr)
		assert.Equal(t, 2000, res)
	})

	t.Run("failure", func(t *testing.T) {
		res, appErr := Handle(ctx, func(context.Context) (int, error) {
			return 7, NewServiceError("firestore/not-found", "no goal document")
		}, "load goal")
		require.NotNil(t, appErr)
		assert.Equal(t, 0, res)
		assert.Equal(t, KindBackendService, appErr.Kind)
		assert.Equal(t, "The requested data was not found.", appErr.UserMessage)
	})

	t.Run("nil result is success", func(t *testing.T) {
		res, appErr := Handle(ctx, func(context.Context) (*string, error) {
			return nil, nil
		}, "load optional note")
		assert.Nil(t, appErr)
		assert.Nil(t, res)
	})

	t.Run("typed nil error is a failure", func(t *testing.T) {
		res, appErr := Handle(ctx, func(context.Context) (*string, error) {
			var svcErr *ServiceError
			note := "ignored"
			return &note, svcErr
		}, "")
		require.NotNil(t, appErr)
		assert.Nil(t, res)
		assert.Equal(t, KindUnknown, appErr.Kind)
	})

	t.Run("panic", func(t *testing.T) {
		res, appErr := Handle(ctx, func(context.Context) (*string, error) {
			panic("reminder scheduler exploded")
		}, "")
		require.NotNil(t, appErr)
		assert.Nil(t, res)
		assert.Equal(t, KindUnknown, appErr.Kind)
		assert.Equal(t, "reminder scheduler exploded", appErr.InternalMessage)
	})
}

func TestWithRetry_NoRetryForValidation(t *testing.T) {
	calls := 0
	validation := ValidationFailed("weight must be positive")

	_, err := WithRetry(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", validation
	}, RetryOptions{MaxAttempts: 3, Delay: time.Millisecond, Label: "save weight"})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	var appErr *AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Same(t, validation, appErr)
	assert.Equal(t, KindValidation, appErr.Kind)
}

func TestWithRetry_NoRetryForAuthentication(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, NewServiceError("auth/wrong-password", "bad password")
	}, RetryOptions{Delay: time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, KindAuthentication, Normalize(err).Kind)
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := WithRetry(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewServiceError("firestore/unavailable", "try later")
		}
		return "saved", nil
	}, RetryOptions{MaxAttempts: 3, Delay: time.Millisecond, Label: "save intake"})

	require.NoError(t, err)
	assert.Equal(t, "saved", got)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("attempt %d failed", calls)
	}, RetryOptions{MaxAttempts: 4, Delay: time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	appErr := Normalize(err)
	assert.Equal(t, KindUnknown, appErr.Kind)
	assert.Equal(t, "attempt 4 failed", appErr.InternalMessage)
}

func TestWithRetry_DefaultAttempts(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, NewServiceError("firestore/aborted", "contention")
	}, RetryOptions{Delay: time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, DefaultMaxAttempts, calls)
}

func TestWithRetry_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	start := time.Now()
	_, err := WithRetry(ctx, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewServiceError("firestore/unavailable", "down")
	}, RetryOptions{MaxAttempts: 3, Delay: time.Hour})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(NewServiceError("auth/invalid-credential", "x")))
	assert.True(t, IsRetryable(NewServiceError("firestore/internal", "x")))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
}
