package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateValidate_RoundTrip(t *testing.T) {
	require.NoError(t, Init("test-secret"))

	token, err := Generate("u-1", "ops@station-9.org", "dispatcher", "fac-9")
	require.NoError(t, err)

	claims, err := Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "ops@station-9.org", claims.Email)
	assert.Equal(t, "dispatcher", claims.Role)
	assert.Equal(t, "fac-9", claims.FacilityID)
	assert.Equal(t, "u-1", claims.Subject)
}

func TestGenerate_AdminHasNoFacilityScope(t *testing.T) {
	require.NoError(t, Init("test-secret"))

	token, err := Generate("u-2", "admin@hq.org", "admin", "")
	require.NoError(t, err)

	claims, err := Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
	assert.Empty(t, claims.FacilityID)
}

func TestValidate_RejectsGarbage(t *testing.T) {
	require.NoError(t, Init("test-secret"))

	_, err := Validate("not.a.token")
	assert.Error(t, err)
}

func TestValidate_RejectsForeignSignature(t *testing.T) {
	require.NoError(t, Init("secret-a"))
	token, err := Generate("u-3", "x@y.org", "dispatcher", "fac-1")
	require.NoError(t, err)

	require.NoError(t, Init("secret-b"))
	_, err = Validate(token)
	assert.Error(t, err)
}

func TestInit_RequiresSecret(t *testing.T) {
	assert.Error(t, Init(""))
}
