package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	typed := Clone(ErrItemLocked, "This item is archived and cannot be checked in/out.")
	wrapped := fmt.Errorf("check out: %w", typed)

	got := FromError(wrapped)
	assert.Equal(t, http.StatusForbidden, got.Status)
	assert.Equal(t, "This item is archived and cannot be checked in/out.", got.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	got := FromError(stdErrors.New("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Nil(t, FromError(nil))
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("save: %w", Clone(ErrStaleWrite, ""))
	assert.True(t, Is(err, ErrStaleWrite))
	assert.False(t, Is(err, ErrNotFound))
	assert.False(t, Is(nil, ErrNotFound))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrNotFound, "Item not found")
	assert.Equal(t, "Item not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}
