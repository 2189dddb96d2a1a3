package adminops

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// adminClaims identifies a holder of the single operator secret as
// authorized to watch the event stream and trigger manual sweeps.
// This is operator tooling, not a second peer-identity layer.
type adminClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// GenerateAdminToken issues a bearer token for the admin surface,
// valid for ttl.
func GenerateAdminToken(secret string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	claims := adminClaims{
		Scope: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("adminops: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// validateAdminToken parses and verifies an admin bearer token.
func validateAdminToken(tokenString, secret string) (*adminClaims, error) {
	claims := &adminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("adminops: parse token: %w", err)
	}
	if !token.Valid || claims.Scope != "admin" {
		return nil, fmt.Errorf("adminops: invalid token")
	}
	return claims, nil
}
