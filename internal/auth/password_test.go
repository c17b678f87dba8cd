package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.True(t, h.Verify("correct horse", hash))
	assert.False(t, h.Verify("wrong horse", hash))
	assert.False(t, h.Verify("correct horse", "not-a-bcrypt-hash"))
}

func TestPasswordHasher_Salted(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_Limits(t *testing.T) {
	_, err := NewPasswordHasher(3)
	assert.Error(t, err)
	_, err = NewPasswordHasher(32)
	assert.Error(t, err)

	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	_, err = h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	assert.Error(t, err)
	_, err = h.Hash(strings.Repeat("a", MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestPasswordHasher_VerifyDummy(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	assert.False(t, h.VerifyDummy("wisefido-casebook-dummy-password"))
	assert.False(t, h.VerifyDummy("anything"))
}
