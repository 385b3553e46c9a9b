package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("NightAudit!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"), hash)

	again, err := HashPassword("NightAudit!")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salted")

	assert.True(t, CheckPassword("NightAudit!", hash))
	for _, wrong := range []string{"", "nightaudit!", "NightAudit!!", "DayShift!"} {
		assert.False(t, CheckPassword(wrong, hash), wrong)
	}
}

func TestPasswordLengthPolicy(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"12345", false},
		{"123456", true},
		{strings.Repeat("k", MaxPasswordLength), true},
		{strings.Repeat("k", MaxPasswordLength+1), false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if tt.ok {
			assert.NoError(t, err, "len %d", len(tt.password))
			continue
		}
		assert.ErrorIs(t, err, ErrWeakPassword, "len %d", len(tt.password))

		_, err = HashPassword(tt.password)
		assert.ErrorIs(t, err, ErrWeakPassword)
	}
}

func TestCheckPassword_DirectoryAccountsHaveNoHash(t *testing.T) {
	for _, hash := range []string{"", "not-a-bcrypt-hash"} {
		assert.False(t, CheckPassword("password", hash), hash)
	}
}
