package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		message       string
		wantMessage   string
		wantRetryable bool
	}{
		{name: "backend message kept", status: 400, message: "land_id is required", wantMessage: "land_id is required"},
		{name: "empty message falls back", status: 400, message: "  ", wantMessage: DefaultServerMessage},
		{name: "5xx is retryable", status: 502, message: "bad gateway", wantMessage: "bad gateway", wantRetryable: true},
		{name: "429 is retryable", status: 429, message: "slow down", wantMessage: "slow down", wantRetryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewServerError("/x", tt.status, tt.message)
			assert.Equal(t, ErrCodeServerError, err.Code)
			assert.Equal(t, tt.wantMessage, err.Message)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
			assert.Equal(t, tt.status, err.Metadata["status"])
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	std := NewValidationError("bad phone", nil)
	assert.Same(t, std, Normalize(std))

	wrapped := fmt.Errorf("submit: %w", std)
	assert.Same(t, std, Normalize(wrapped))

	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestTransportErrorUnwraps(t *testing.T) {
	err := NewTimeoutError("/lands", context.DeadlineExceeded)
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsRetryable(err))
	assert.True(t, HasCode(err, ErrCodeRequestTimeout))
}

func TestNewValidationError_FieldMetadata(t *testing.T) {
	err := NewValidationError("invalid enquiry", map[string]string{"contact_phone": "must be 10 digits"})
	require.NotNil(t, err.Metadata)
	assert.Equal(t, "must be 10 digits", err.Metadata["field.contact_phone"])
	assert.Contains(t, err.Details, "contact_phone")
	assert.False(t, err.Retryable)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Unable to reach the server", UserMessage(NewTransportError("/x", stderrors.New("dial"))))
	assert.Equal(t, "Unexpected error", UserMessage(stderrors.New("x")))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "TRANSPORT", GetErrorCategory(ErrCodeRequestTimeout))
	assert.Equal(t, "SERVER", GetErrorCategory(ErrCodeUnexpectedResponseShape))
	assert.Equal(t, "AUTH/SESSION", GetErrorCategory(ErrCodeAuthenticationRequired))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING"))
}
