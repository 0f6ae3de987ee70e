// Package auth mints and verifies operator tokens guarding the destructive
// queue operations (pull, clear) on the HTTP surface.
package auth

import (
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator is the role carried by tokens allowed to run destructive
// queue operations.
const RoleOperator = "operator"

// Claims includes the registered claims plus the token holder's role.
type Claims struct {
	jwt.RegisteredClaims
	Role string
}

// GenerateOperatorToken signs a short-lived HS256 token with the operator role.
func GenerateOperatorToken(secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Role: RoleOperator,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// VerifyOperatorToken parses the token and checks both its signature and the
// operator role. Returns common.ErrInvalidToken for anything unusable.
func VerifyOperatorToken(tokenString string, secretKey []byte) error {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return common.ErrInvalidToken
	}

	if !token.Valid || claims.Role != RoleOperator {
		return common.ErrInvalidToken
	}

	return nil
}
