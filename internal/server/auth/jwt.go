// Package auth issues and verifies access tokens and hashes passwords.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped into every access token and required on parse.
const Issuer = "gophsocial"

// Claims carries the registered claims plus the id of the signed-in user.
// Subject mirrors UserID.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// GetUserIDFromToken verifies an HS256 token and returns its user id. An
// expired token yields common.ErrTokenExpired, anything else unusable
// yields common.ErrInvalidToken.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	var claims Claims
	keyFn := func(*jwt.Token) (any, error) { return secretKey, nil }

	token, err := jwt.ParseWithClaims(tokenString, &claims, keyFn,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", common.ErrTokenExpired
	case err != nil, !token.Valid:
		return "", common.ErrInvalidToken
	case claims.UserID == "" || claims.Subject != claims.UserID:
		return "", common.ErrInvalidToken
	}
	return claims.UserID, nil
}
