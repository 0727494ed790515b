package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(StatusNew, StatusFilled))
	assert.NoError(t, ValidateTransition(StatusNew, StatusCanceled))
	assert.NoError(t, ValidateTransition(StatusFilled, StatusFilled))
	assert.Error(t, ValidateTransition(StatusFilled, StatusCanceled))
	assert.Error(t, ValidateTransition(StatusCanceled, StatusNew))

	assert.True(t, IsFinalState(StatusRejected))
	assert.False(t, IsFinalState(StatusNew))
}
