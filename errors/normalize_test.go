package errors

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"

	cerrors "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type missingKeysErr struct {
	keys []string
}

func (e *missingKeysErr) Error() string {
	return "missing configuration: " + strings.Join(e.keys, ", ")
}

func (e *missingKeysErr) MissingConfigKeys() []string { return e.keys }

type customCoded struct{ code string }

func (e customCoded) Error() string       { return "custom " + e.code }
func (e customCoded) ServiceCode() string { return e.code }

func TestNormalize_AppErrorUnchanged(t *testing.T) {
	original := New(KindValidation, "x", "internal", "user")
	assert.Same(t, original, Normalize(original))

	wrapped := fmt.Errorf("handler failed: %w", original)
	assert.Same(t, original, Normalize(wrapped))

	byValue := Normalize(*original)
	assert.Equal(t, *original, *byValue)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []interface{}{
		nil,
		"plain message",
		42,
		map[string]string{"reason": "weird"},
		fmt.Errorf("generic"),
		cerrors.New("with stack"),
		NewServiceError("auth/wrong-password", "bad password"),
		NewServiceError("firestore/unavailable", "backend down"),
		&missingKeysErr{keys: []string{"FIREBASE_APP_ID"}},
		context.DeadlineExceeded,
		New(KindNetwork, "", "offline", "Offline"),
	}

	for _, in := range inputs {
		t.Run(fmt.Sprintf("%T", in), func(t *testing.T) {
			first := Normalize(in)
			require.NotNil(t, first)
			assert.Same(t, first, Normalize(first))
		})
	}
}

func TestNormalize_WrongPassword(t *testing.T) {
	err := Normalize(NewServiceError("auth/wrong-password", "INVALID_PASSWORD"))
	assert.Equal(t, KindAuthentication, err.Kind)
	assert.Equal(t, "auth/wrong-password", err.Code)
	assert.Equal(t, "Incorrect password. Please try again.", err.UserMessage)
	assert.Equal(t, "INVALID_PASSWORD", err.InternalMessage)
}

func TestNormalize_ServiceCodeClassification(t *testing.T) {
	tests := []struct {
		code     string
		wantKind Kind
	}{
		{"auth/user-not-found", KindAuthentication},
		{"auth/wrong-password", KindAuthentication},
		{"auth/too-many-requests", KindAuthentication},
		{"auth/network-request-failed", KindAuthentication},
		{"auth/invalid-credential", KindAuthorization},
		{"auth/insufficient-permission", KindAuthorization},
		{"firestore/permission-denied", KindAuthorization},
		{"firestore/unauthenticated", KindAuthorization},
		{"firestore/unavailable", KindBackendService},
		{"firestore/not-found", KindBackendService},
		{"storage/quota-exceeded", KindBackendService},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := Normalize(NewServiceError(tt.code, "boom"))
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestNormalize_UnmappedCodeUsesServiceMessage(t *testing.T) {
	got := Normalize(NewServiceError("firestore/cancelled", "cancelled by client"))
	assert.Equal(t, ServiceUserMessage, got.UserMessage)
	assert.Equal(t, KindBackendService, got.Kind)
}

func TestNormalize_AllMappedCodesHaveMessages(t *testing.T) {
	assert.GreaterOrEqual(t, len(serviceMessages), 25)
	for code, msg := range serviceMessages {
		assert.NotEmpty(t, msg, code)
		assert.True(t, strings.HasPrefix(code, identityCodePrefix) || strings.HasPrefix(code, dataStoreCodePrefix), code)
		got, ok := UserMessageForCode(code)
		assert.True(t, ok)
		assert.Equal(t, msg, got)
	}
}

func TestNormalize_CustomCoderInChain(t *testing.T) {
	err := fmt.Errorf("loading intake log: %w", customCoded{code: "firestore/permission-denied"})
	got := Normalize(err)
	assert.Equal(t, KindAuthorization, got.Kind)
	assert.Equal(t, "firestore/permission-denied", got.Code)
	assert.Equal(t, err.Error(), got.InternalMessage)
}

func TestNormalize_EnvironmentError(t *testing.T) {
	got := Normalize(&missingKeysErr{keys: []string{"FIREBASE_API_KEY", "FIREBASE_APP_ID"}})
	assert.Equal(t, KindEnvironment, got.Kind)
	assert.Equal(t, EnvironmentUserMessage, got.UserMessage)
	assert.Equal(t, []string{"FIREBASE_API_KEY", "FIREBASE_APP_ID"}, got.Details)
	assert.NotContains(t, got.UserMessage, "FIREBASE")
}

func TestNormalize_NetworkErrors(t *testing.T) {
	got := Normalize(fmt.Errorf("probe: %w", context.DeadlineExceeded))
	assert.Equal(t, KindNetwork, got.Kind)
	assert.Equal(t, NetworkUserMessage, got.UserMessage)

	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}
	assert.Equal(t, KindNetwork, Normalize(opErr).Kind)
}

func TestNormalize_GenericError(t *testing.T) {
	withStack := cerrors.New("document decode failed")
	got := Normalize(withStack)
	assert.Equal(t, KindUnknown, got.Kind)
	assert.Equal(t, GenericUserMessage, got.UserMessage)
	assert.Equal(t, "document decode failed", got.InternalMessage)
	assert.Contains(t, got.Trace, "document decode failed")
	assert.NotEqual(t, got.InternalMessage, got.Trace)

	plain := Normalize(fmt.Errorf("plain failure"))
	assert.Equal(t, KindUnknown, plain.Kind)
	assert.Empty(t, plain.Trace)
}

func TestNormalize_String(t *testing.T) {
	got := Normalize("Daily goal must be set first")
	assert.Equal(t, KindUnknown, got.Kind)
	assert.Equal(t, "Daily goal must be set first", got.UserMessage)
	assert.Equal(t, "Daily goal must be set first", got.InternalMessage)
}

func TestNormalize_Opaque(t *testing.T) {
	raw := struct{ Status int }{Status: 418}
	got := Normalize(raw)
	assert.Equal(t, KindUnknown, got.Kind)
	assert.Equal(t, GenericUserMessage, got.UserMessage)
	assert.Equal(t, raw, got.Details)

	var typedNil *AppError
	fromNil := Normalize(typedNil)
	assert.Equal(t, KindUnknown, fromNil.Kind)
	assert.Equal(t, GenericUserMessage, fromNil.UserMessage)
}

func loadIntakeLog() error {
	var svcErr *ServiceError
	return svcErr
}

func TestNormalize_TypedNilErrors(t *testing.T) {
	var envErr *missingKeysErr
	inputs := map[string]error{
		"service error":             loadIntakeLog(),
		"environment error":         envErr,
		"wrapped service error":     fmt.Errorf("loading intake log: %w", loadIntakeLog()),
		"wrapped environment error": fmt.Errorf("validating: %w", envErr),
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			var got *AppError
			require.NotPanics(t, func() { got = Normalize(input) })
			require.NotNil(t, got)
			assert.Equal(t, KindUnknown, got.Kind)
			assert.Equal(t, GenericUserMessage, got.UserMessage)
			assert.Empty(t, got.Code)
		})
	}
}

func TestServiceError_NilReceiver(t *testing.T) {
	var svcErr *ServiceError
	assert.NotPanics(t, func() {
		assert.Empty(t, svcErr.ServiceCode())
		assert.NotEmpty(t, svcErr.Error())
	})
}
