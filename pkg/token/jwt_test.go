package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 1)

	tok, err := m.GenerateToken("uid-1", "ada@example.com")
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	tok, err := NewJWTManager("one", 1).GenerateToken("uid-1", "ada@example.com")
	require.NoError(t, err)

	_, err = NewJWTManager("two", 1).VerifyToken(tok)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", -1)
	tok, err := m.GenerateToken("uid-1", "ada@example.com")
	require.NoError(t, err)

	_, err = m.VerifyToken(tok)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewJWTManager("secret", 1).VerifyToken("not-a-token")
	assert.Error(t, err)
}
