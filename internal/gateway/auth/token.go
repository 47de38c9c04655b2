package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims are the claims in a short-lived admin token used to guard
// API key management endpoints.
type AdminClaims struct {
	KeyName string `json:"key_name"`
	jwt.RegisteredClaims
}

// TokenService issues and validates admin tokens. A token is obtained by
// presenting a valid API key and carries that key's id as its subject.
type TokenService struct {
	secret []byte
	expiry time.Duration
}

func NewTokenService(secret string, expiry time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), expiry: expiry}
}

// IssueToken creates a signed admin token for a verified identity.
func (s *TokenService) IssueToken(identity *Identity) (string, error) {
	if identity == nil || identity.ID == "" {
		return "", errors.New("identity is required")
	}

	now := time.Now()
	claims := AdminClaims{
		KeyName: identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "surgeonmatch",
			Subject:   identity.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and validates an admin token, returning its claims.
func (s *TokenService) ValidateToken(tokenString string) (*AdminClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token is required")
	}

	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
