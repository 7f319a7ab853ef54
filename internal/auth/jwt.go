// Package auth issues and validates the bearer tokens that scope every
// API call to one owner.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nileshh/whatsapp-media-sync/internal/common"
)

// Claims carries the owner identity alongside the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Owner string
}

func GenerateToken(owner string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Owner: owner,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func GetOwnerFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.Owner, nil
}
