package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCoordinates(t *testing.T) {
	assert.True(t, ValidateCoordinates(0, 0))
	assert.True(t, ValidateCoordinates(-90, -180))
	assert.True(t, ValidateCoordinates(90, 180))
	assert.True(t, ValidateCoordinates(1.000, 36.000))

	assert.False(t, ValidateCoordinates(90.01, 0))
	assert.False(t, ValidateCoordinates(-90.01, 0))
	assert.False(t, ValidateCoordinates(0, 180.01))
	assert.False(t, ValidateCoordinates(0, -180.01))
}

func TestValidateFuelLevel(t *testing.T) {
	assert.True(t, ValidateFuelLevel(0))
	assert.True(t, ValidateFuelLevel(100))
	assert.False(t, ValidateFuelLevel(-1))
	assert.False(t, ValidateFuelLevel(101))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("ops@example.com"))
	assert.False(t, ValidateEmail("not-an-email"))
	assert.False(t, ValidateEmail(""))
}

func TestValidatePhone(t *testing.T) {
	assert.True(t, ValidatePhone("+254700000000"))
	assert.False(t, ValidatePhone("abc"))
}
