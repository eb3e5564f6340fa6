package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatchesPredefined(t *testing.T) {
	err := Kind(ErrSlotConflict, fmt.Errorf("insert booking: duplicate"))

	assert.True(t, errors.Is(err, ErrSlotConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, ErrSlotConflict.Message, err.Message)
	assert.Equal(t, http.StatusConflict, err.Status)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.True(t, errors.Is(appErr, sql.ErrConnDone))
}

func TestFromErrorKeepsTyped(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Clone(ErrForbidden, ""))

	appErr := FromError(wrapped)

	assert.Equal(t, ErrForbidden.Code, appErr.Code)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Kind(ErrStorageUnavailable, sql.ErrConnDone)))
	assert.False(t, Retryable(ErrSlotConflict))
}
