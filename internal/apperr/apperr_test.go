package apperr

import (
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"testing"
)

var errBoom = errors.New("boom")

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("op", errBoom)))
	assert.Equal(t, KindNotFound, KindOf(NotFound("op", errBoom)))
	assert.Equal(t, KindConflict, KindOf(Conflict("op", errBoom)))
	assert.Equal(t, KindInternal, KindOf(errBoom))
	assert.Equal(t, KindInternal, KindOf(Internal("op", errBoom)))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", Conflict("orders.Cancel", errBoom))
	assert.True(t, IsConflict(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "handler: orders.Cancel: boom", err.Error())
}

func TestNilStaysNil(t *testing.T) {
	assert.NoError(t, Validation("op", nil))
	assert.False(t, IsNotFound(nil))
}

func TestValidationf(t *testing.T) {
	err := Validationf("orders.Create", "unsupported payment method %q", "CARD")
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), `"CARD"`)
}
