package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPlainPassphrase(t *testing.T) {
	p := NewPassphrase("s3cret")
	assert.False(t, p.Hashed())
	assert.NoError(t, p.Verify("s3cret"))
	assert.ErrorIs(t, p.Verify("s3cre"), ErrUnauthorized)
	assert.ErrorIs(t, p.Verify(""), ErrUnauthorized)
}

func TestDefaultPassphrase(t *testing.T) {
	p := NewPassphrase("")
	assert.NoError(t, p.Verify("0000"))
	assert.ErrorIs(t, p.Verify("1234"), ErrUnauthorized)
}

func TestHashedPassphrase(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("let-me-in"), bcrypt.MinCost)
	require.NoError(t, err)

	p := NewPassphrase(string(hash))
	assert.True(t, p.Hashed())
	assert.NoError(t, p.Verify("let-me-in"))
	assert.ErrorIs(t, p.Verify(string(hash)), ErrUnauthorized)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("0000")
	require.NoError(t, err)
	assert.True(t, isBcryptHash(hash))
	assert.True(t, CheckPasswordHash("0000", hash))
	assert.False(t, CheckPasswordHash("0001", hash))
}
