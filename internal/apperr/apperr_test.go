package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindSentinel(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("list tasks: %w", Query("fetch tasks", base))

	assert.ErrorIs(t, err, ErrQuery)
	assert.NotErrorIs(t, err, ErrWrite)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, KindQuery, KindOf(err))
}

func TestConstructorsKeepNil(t *testing.T) {
	assert.NoError(t, Write("save", nil))
	assert.NoError(t, Upload("put", nil))
}

func TestInvalidMessage(t *testing.T) {
	err := Invalid("create task", "text is required")
	assert.EqualError(t, err, "create task: text is required")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "not_found", KindNotFound.String())
}
