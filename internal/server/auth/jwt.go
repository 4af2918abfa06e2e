// Package auth builds and verifies the signed access token format: a JWT
// signed with HMAC-SHA-512 whose payload carries the user identity and role
// captured at issuance.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/newsplatform/sessiond/internal/common"
	"github.com/newsplatform/sessiond/internal/server/models"
)

// Claims is the access token payload. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Username        string `json:"username"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	RoleDescription string `json:"roleDescription"`
}

// GenerateToken signs an access token for user with the process-wide secret.
// issued is the token's iat; expiry is issued+ttl.
func GenerateToken(user *models.User, secretKey []byte, issued time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
		Username:        user.Username,
		Email:           user.Email,
		Role:            string(user.Role),
		RoleDescription: user.Role.Description(),
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies the signature and registered claims of tokenString.
// The signing method is pinned to HS512; tokens signed any other way are
// rejected. A malformed, tampered or expired token returns an error.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
