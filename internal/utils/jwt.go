package utils

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "staysignal"
	tokenAudience = "staysignal-api"
	clockLeeway   = 30 * time.Second
)

var (
	jwtSecret   []byte
	jwtSecretMu sync.RWMutex

	ErrTokenNoTenant = errors.New("token is not bound to a tenant")
)

// Claims identifies a manager acting for one tenant.
type Claims struct {
	ManagerID uint   `json:"manager_id"`
	TenantID  uint   `json:"tenant_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

func SetJWTSecret(secret string) {
	jwtSecretMu.Lock()
	jwtSecret = []byte(secret)
	jwtSecretMu.Unlock()
}

func signingKey() []byte {
	jwtSecretMu.RLock()
	defer jwtSecretMu.RUnlock()
	return jwtSecret
}

// GenerateToken signs an access token valid for ttl.
func GenerateToken(managerID, tenantID uint, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ManagerID: managerID,
		TenantID:  tenantID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   fmt.Sprintf("manager:%d", managerID),
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey())
}

func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return signingKey(), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	)
	if err != nil {
		return nil, err
	}
	if claims.TenantID == 0 {
		return nil, ErrTokenNoTenant
	}
	return claims, nil
}
