package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAnonymous(t *testing.T) {
	assert.True(t, IsAnonymous(""))
	assert.True(t, IsAnonymous("  "))
	assert.True(t, IsAnonymous("Anonymous@FortecAI.com"))
	assert.False(t, IsAnonymous("ada@example.com"))
}

func TestUserIDIsStableAndCaseInsensitive(t *testing.T) {
	a := UserID("ada@example.com")
	assert.Len(t, a, 32)
	assert.Equal(t, a, UserID(" ADA@example.com "))
	assert.NotEqual(t, a, UserID("grace@example.com"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "ada", DisplayName("ada@example.com"))
	assert.Equal(t, "@example.com", DisplayName("@example.com"))
	assert.Equal(t, "ada", DisplayName("ada"))
}
