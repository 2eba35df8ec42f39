package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"ms-preorder/internal/apperr"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_Matching(t *testing.T) {
	err := fmt.Errorf("resolve: %w", apperr.NotFound("quote", 42))

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.True(t, apperr.IsNotFoundEntity(err, "quote"))
	assert.False(t, apperr.IsNotFoundEntity(err, "pre-order"))
	assert.Equal(t, `quote "42" not found`, apperr.NotFound("quote", 42).Error())
}

func TestCloneStageError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &apperr.CloneStageError{Stage: apperr.StageItems, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "items")
}

func TestMessages(t *testing.T) {
	msgs := apperr.Messages([]string{"first", "  ", "second"}, errors.New("terminal"))
	assert.Equal(t, []string{"first", "second", "terminal"}, msgs)

	assert.Empty(t, apperr.Messages(nil, nil))
}

func TestDeliveryError(t *testing.T) {
	err := &apperr.DeliveryError{Recipient: "a@example.com", Primary: true, Err: errors.New("refused")}
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "a@example.com")
}
