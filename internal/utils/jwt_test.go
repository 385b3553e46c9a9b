package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing"

func init() {
	SetJWTSecret(testSecret)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, 7, "general_manager", 2*time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.ManagerID)
	assert.Equal(t, uint(7), claims.TenantID)
	assert.Equal(t, "general_manager", claims.Role)
	assert.Equal(t, "manager:42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTokensAreUnique(t *testing.T) {
	a, _ := GenerateToken(1, 1, "front_desk", time.Hour)
	b, _ := GenerateToken(1, 1, "front_desk", time.Hour)
	assert.NotEqual(t, a, b, "same manager, same second still gets a fresh token id")
}

func TestParseTokenRejects(t *testing.T) {
	sign := func(claims jwt.Claims, method jwt.SigningMethod, key interface{}) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func(mut func(*Claims)) *Claims {
		now := time.Now()
		c := &Claims{
			ManagerID: 1,
			TenantID:  3,
			Role:      "duty_manager",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				Audience:  jwt.ClaimStrings{tokenAudience},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		mut(c)
		return c
	}

	expired, _ := GenerateToken(1, 3, "duty_manager", -time.Hour)
	noTenant, _ := GenerateToken(1, 0, "duty_manager", time.Hour)

	tests := map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"expired":        expired,
		"no tenant":      noTenant,
		"wrong secret":   sign(valid(func(*Claims) {}), jwt.SigningMethodHS256, []byte("another-property")),
		"wrong issuer":   sign(valid(func(c *Claims) { c.Issuer = "elsewhere" }), jwt.SigningMethodHS256, []byte(testSecret)),
		"wrong audience": sign(valid(func(c *Claims) { c.Audience = jwt.ClaimStrings{"guest-portal"} }), jwt.SigningMethodHS256, []byte(testSecret)),
		"no expiry":      sign(valid(func(c *Claims) { c.ExpiresAt = nil }), jwt.SigningMethodHS256, []byte(testSecret)),
		"other method":   sign(valid(func(*Claims) {}), jwt.SigningMethodHS512, []byte(testSecret)),
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(token)
			assert.Error(t, err)
		})
	}

	_, err := ParseToken(noTenant)
	assert.ErrorIs(t, err, ErrTokenNoTenant)
}

func TestParseTokenAllowsSmallClockSkew(t *testing.T) {
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		ManagerID: 5,
		TenantID:  2,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			NotBefore: jwt.NewNumericDate(now.Add(10 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.NoError(t, err)
}
