package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCauseReachable(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrEarningsCalculation.Code, ErrEarningsCalculation.Status, ErrEarningsCalculation.Message)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "failed to calculate controller earnings: connection refused", err.Error())
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestFromErrorNormalisesUnknownErrors(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)

	typed := Clone(ErrValidation, "month must be YYYY-MM")
	assert.Same(t, typed, FromError(fmt.Errorf("wrapped: %w", typed)))
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrNotFound, "controller not found")
	assert.Equal(t, "controller not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestIsMatchesByCode(t *testing.T) {
	clone := Clone(ErrValidation, "month must be YYYY-MM")
	assert.True(t, errors.Is(clone, ErrValidation))
	assert.True(t, errors.Is(fmt.Errorf("handler: %w", clone), ErrValidation))
	assert.False(t, errors.Is(clone, ErrNotFound))

	wrapped := Wrap(fmt.Errorf("dial tcp"), ErrServiceUnavailable.Code, ErrServiceUnavailable.Status, "queue full")
	assert.True(t, errors.Is(wrapped, ErrServiceUnavailable))
}
