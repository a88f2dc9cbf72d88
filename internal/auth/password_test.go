package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	first, err := h.Hash("pw1")
	require.NoError(t, err)
	second, err := h.Hash("pw1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "hashes must be salted")
	assert.NotContains(t, first, "pw1")

	ok, err := h.Verify("pw1", first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("pw1", second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("pw2", first)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasher_VerifyMalformedHash(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := h.Verify("pw1", "not-a-bcrypt-hash")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestHasher_UsesConfiguredCost(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost + 1)
	require.NoError(t, err)

	hashed, err := h.Hash("secret")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hashed))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestNewHasher_RejectsCostOutOfRange(t *testing.T) {
	for _, cost := range []int{0, bcrypt.MinCost - 1, bcrypt.MaxCost + 1} {
		_, err := NewHasher(cost)
		assert.ErrorIs(t, err, ErrConfig, "cost %d", cost)
	}
}

func TestHasher_PasswordTooLong(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	_, err = h.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
