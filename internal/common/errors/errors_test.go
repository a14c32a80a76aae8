package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewDocumentStoreError("get", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, err.IsInternal())
	assert.Contains(t, err.Error(), "DOCUMENT_STORE_ERROR")
	assert.Equal(t, "get", err.Details["operation"])
}

func TestAsAppErrorThroughWrapping(t *testing.T) {
	inner := NewSessionNotFoundError("bob")
	wrapped := fmt.Errorf("handler: %w", inner)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.True(t, appErr.IsNotFound())
	assert.True(t, IsAppError(wrapped))

	_, ok = AsAppError(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestValidationClassification(t *testing.T) {
	assert.True(t, NewValidationError("amount", "must be positive").IsValidation())
	assert.True(t, NewBadRequestError("malformed json").IsValidation())
	assert.True(t, NewUnauthorizedError("missing user").IsUnauthorized())
}
