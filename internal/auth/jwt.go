package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
)

// Claims represents the JWT claims carried by campus access tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager validates access tokens issued by the campus identity provider.
// This service never mints tokens; it only verifies them against the shared
// secret.
type JWTManager struct {
	secret []byte
}

// NewJWTManager creates a new JWT manager with the given secret.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{secret: []byte(secret)}
}

// ValidateAccessToken parses and validates an access token, returning the claims.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}

	// Campus tokens can carry roles this service does not recognize
	// (faculty, staff). Those callers get student-level access.
	if !domain.IsValidRole(claims.Role) {
		claims.Role = domain.RoleStudent
	}

	return claims, nil
}
